package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/events"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

const DefaultReadyTimeout = 5 * time.Second

var ErrSubscribeTimeout = errors.New("timed out waiting for progress subscription")

// Hub bridges the progress channels of the store to connected sinks. One subscriber
// goroutine runs per job with at least one sink.
type Hub struct {
	kv           kvstore.Store
	jobs         store.JobRegistry
	readyTimeout time.Duration

	lock  sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	jobID   string
	handles map[*handle]struct{}
	ready   chan struct{}
	err     error
	cancel  context.CancelFunc
}

func NewHub(kv kvstore.Store, jobs store.JobRegistry) *Hub {
	return &Hub{kv: kv, jobs: jobs, readyTimeout: DefaultReadyTimeout, feeds: map[string]*feed{}}
}

// Subscription is one registered sink.
type Subscription struct {
	hub    *Hub
	feed   *feed
	handle *handle
	// Terminal is set when the job had already finished at connect time. The sink was closed.
	Terminal bool
}

func (s *Subscription) Close() {
	s.hub.remove(s.feed, s.handle)
}

// Connect registers sink for job. It returns once the channel subscription is confirmed
// and the current snapshot was sent. For a terminal job the sink gets the snapshot and is closed.
func (h *Hub) Connect(ctx context.Context, jobID string, sink Sink) (*Subscription, error) {
	if _, err := h.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}

	hd := &handle{sink: sink}
	f := h.register(jobID, hd)

	timer := time.NewTimer(h.readyTimeout)
	defer timer.Stop()
	select {
	case <-f.ready:
	case <-timer.C:
		h.remove(f, hd)
		return nil, ErrSubscribeTimeout
	case <-ctx.Done():
		h.remove(f, hd)
		return nil, ctx.Err()
	}
	if f.err != nil {
		h.remove(f, hd)
		return nil, f.err
	}
	metrics.IncreaseWebsocketSubscribers()
	hd.counted.Store(true)

	sub := &Subscription{hub: h, feed: f, handle: hd}
	// read after the subscription is live so no update falls in between
	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		sub.Close()
		return nil, err
	}
	b, err := json.Marshal(Snapshot(job))
	if err != nil {
		sub.Close()
		return nil, err
	}
	if err := hd.prime(b); err != nil {
		sub.Close()
		return nil, fmt.Errorf("sending snapshot: %w", err)
	}
	if job.Status.IsTerminal() {
		sub.Terminal = true
		sub.Close()
	}
	return sub, nil
}

// Subscribers returns the number of sinks registered for job.
func (h *Hub) Subscribers(jobID string) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	if f, ok := h.feeds[jobID]; ok {
		return len(f.handles)
	}
	return 0
}

func (h *Hub) register(jobID string, hd *handle) *feed {
	h.lock.Lock()
	defer h.lock.Unlock()
	f, ok := h.feeds[jobID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &feed{jobID: jobID, handles: map[*handle]struct{}{}, ready: make(chan struct{}), cancel: cancel}
		h.feeds[jobID] = f
		go h.run(ctx, f)
	}
	f.handles[hd] = struct{}{}
	return f
}

// remove drops hd and stops the feed when it was the last sink.
func (h *Hub) remove(f *feed, hd *handle) {
	h.lock.Lock()
	_, ok := f.handles[hd]
	if ok {
		delete(f.handles, hd)
		if len(f.handles) == 0 && h.feeds[f.jobID] == f {
			delete(h.feeds, f.jobID)
			f.cancel()
		}
	}
	h.lock.Unlock()
	if ok {
		_ = hd.sink.Close()
		if hd.counted.Load() {
			metrics.DecreaseWebsocketSubscribers()
		}
	}
}

func (h *Hub) run(ctx context.Context, f *feed) {
	logger := zap.S().Named("progress_hub")
	channel := store.ProgressChannel(f.jobID)

	if err := h.kv.EnsureConnected(ctx); err != nil {
		logger.Warnw("store not reachable before subscribe", "job_id", f.jobID, "error", err)
	}
	sub, err := h.kv.Subscribe(ctx, channel)
	if err != nil {
		logger.Errorw("failed to subscribe to progress", "job_id", f.jobID, "error", err)
		f.err = err
		close(f.ready)
		h.drop(f)
		return
	}
	close(f.ready)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				h.drop(f)
				return
			}
			h.broadcast(f, msg.Payload)
			var ev events.ProgressEvent
			if err := json.Unmarshal(msg.Payload, &ev); err == nil && model.JobStatus(ev.Status).IsTerminal() {
				h.drop(f)
				return
			}
		}
	}
}

func (h *Hub) broadcast(f *feed, payload []byte) {
	h.lock.Lock()
	handles := make([]*handle, 0, len(f.handles))
	for hd := range f.handles {
		handles = append(handles, hd)
	}
	h.lock.Unlock()

	for _, hd := range handles {
		if err := hd.deliver(payload); err != nil {
			zap.S().Named("progress_hub").Debugw("pruning dead sink", "job_id", f.jobID, "error", err)
			h.remove(f, hd)
		}
	}
}

// drop forgets f and closes every sink of it. A register after the feed left the map starts a new feed.
func (h *Hub) drop(f *feed) {
	h.lock.Lock()
	if h.feeds[f.jobID] == f {
		delete(h.feeds, f.jobID)
	}
	handles := make([]*handle, 0, len(f.handles))
	for hd := range f.handles {
		handles = append(handles, hd)
	}
	h.lock.Unlock()
	for _, hd := range handles {
		h.remove(f, hd)
	}
	f.cancel()
}

// Close stops every feed.
func (h *Hub) Close() {
	h.lock.Lock()
	feeds := make([]*feed, 0, len(h.feeds))
	for _, f := range h.feeds {
		feeds = append(feeds, f)
	}
	h.lock.Unlock()
	for _, f := range feeds {
		h.drop(f)
	}
}
