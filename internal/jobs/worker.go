package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/validation"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

type WorkerOptions struct {
	WriteRetries int
	WriteBackoff time.Duration
}

// Worker pulls one task at a time from its tiers and processes it.
type Worker struct {
	id        string
	tiers     []string
	queue     *Queue
	processor *Processor
	store     store.Store
	tracker   *progress.Tracker
	opts      WorkerOptions
}

func NewWorker(id string, tiers []string, queue *Queue, processor *Processor, s store.Store, tracker *progress.Tracker, opts WorkerOptions) *Worker {
	if opts.WriteRetries <= 0 {
		opts.WriteRetries = 3
	}
	if opts.WriteBackoff <= 0 {
		opts.WriteBackoff = 100 * time.Millisecond
	}
	return &Worker{id: id, tiers: tiers, queue: queue, processor: processor, store: s, tracker: tracker, opts: opts}
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) Timeout(_ *Task) time.Duration {
	return JobTimeout
}

// Run processes tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	logger := zap.S().Named("worker").With("worker_id", w.id)
	logger.Infow("worker started", "queues", w.tiers)
	defer logger.Info("worker stopped")

	for {
		d, err := w.queue.Dequeue(ctx, w.id, w.tiers)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Warnw("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.handle(ctx, d)
	}
}

// handle acks a finished delivery and requeues a failed one.
func (w *Worker) handle(ctx context.Context, d *Delivery) {
	logger := zap.S().Named("worker").With("worker_id", w.id, "task_id", d.Task.ID, "queue", d.Task.Queue)

	taskCtx, cancel := context.WithTimeout(ctx, w.Timeout(d.Task))
	err := w.Work(taskCtx, d.Task)
	cancel()

	// the delivery outlives a shutdown of ctx
	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()

	if err == nil {
		if err := w.queue.Ack(releaseCtx, d); err != nil {
			logger.Errorw("ack failed", "error", err)
		}
		return
	}

	logger.Warnw("task failed, requeueing", "deliveries", d.Task.Deliveries+1, "error", err)
	dead, rerr := w.queue.Requeue(releaseCtx, d)
	if rerr != nil {
		logger.Errorw("requeue failed", "error", rerr)
		return
	}
	if dead {
		w.deadLettered(releaseCtx, d.Task, err)
	}
}

// deadLettered ends whatever waits on a task that ran out of deliveries.
func (w *Worker) deadLettered(ctx context.Context, t *Task, cause error) {
	logger := zap.S().Named("worker").With("worker_id", w.id, "task_id", t.ID)
	switch t.Kind {
	case KindBatchChunk:
		msg := fmt.Sprintf("chunk %d failed after %d deliveries: %s", t.Chunk.ChunkIndex, t.Deliveries, cause)
		if _, err := w.tracker.Fail(ctx, t.Chunk.JobID, msg); err != nil {
			logger.Errorw("failed to fail job", "job_id", t.Chunk.JobID, "error", err)
		}
	case KindValidateSingle:
		w.reply(ctx, t, &SingleReply{Error: cause.Error(), ErrorKind: "internal"})
	}
}

// Work processes one task. A returned error means the task must be delivered again.
func (w *Worker) Work(ctx context.Context, t *Task) error {
	// Check for cancellation before starting
	if err := ctx.Err(); err != nil {
		return err
	}
	switch t.Kind {
	case KindBatchChunk:
		if t.Chunk == nil {
			return nil
		}
		return w.workChunk(ctx, t.Chunk, t.Queue)
	case KindValidateSingle:
		if t.Single == nil {
			return nil
		}
		return w.workSingle(ctx, t)
	}
	zap.S().Named("worker").Errorw("dropping task of unknown kind", "task_id", t.ID, "kind", t.Kind)
	return nil
}

func (w *Worker) workChunk(ctx context.Context, c *ChunkArgs, queue string) error {
	logger := zap.S().Named("worker").With("worker_id", w.id, "job_id", c.JobID, "chunk_index", c.ChunkIndex)
	start := time.Now()

	job, err := w.store.Jobs().Get(ctx, c.JobID)
	if errors.Is(err, store.ErrRecordNotFound) {
		logger.Info("job is gone, dropping chunk")
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		logger.Infow("job already finished, dropping chunk", "status", job.Status)
		return nil
	}

	results := make([]model.ResultItem, 0, len(c.Items))
	cancelled := false
	for i, item := range c.Items {
		if i > 0 {
			current, err := w.store.Jobs().Get(ctx, c.JobID)
			if err == nil && current.Status == model.JobStatusCancelled {
				cancelled = true
				break
			}
		}
		results = append(results, w.processItem(ctx, item, c.Options))
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if err := w.withRetry(ctx, func() error { return w.store.Results().Append(ctx, c.JobID, results) }); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	if cancelled {
		logger.Infow("job cancelled, dropped rest of chunk", "processed", len(results), "dropped", len(c.Items)-len(results))
		return nil
	}

	success, failed := 0, 0
	for i := range results {
		if results[i].Status == model.ItemStatusSuccess {
			success++
		} else {
			failed++
		}
	}
	if err := w.withRetry(ctx, func() error {
		_, err := w.tracker.ChunkDone(ctx, c.JobID, c.ChunkIndex, len(results), success, failed)
		return err
	}); err != nil {
		return fmt.Errorf("recording chunk: %w", err)
	}

	metrics.AddMoleculesProcessed(string(model.ItemStatusSuccess), success)
	metrics.AddMoleculesProcessed(string(model.ItemStatusError), failed)
	metrics.ObserveChunkDuration(queue, time.Since(start).Seconds())
	logger.Debugw("chunk processed", "success", success, "errors", failed, "duration", time.Since(start))
	return nil
}

// processItem turns a panic of the chemistry code into an error result for that item only.
func (w *Worker) processItem(ctx context.Context, item Item, opts model.JobOptions) (result model.ResultItem) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Named("worker").Errorw("item processing panicked", "worker_id", w.id, "index", item.Index, "panic", r)
			result = model.ErrorItem(item.Index, item.Input, item.Name, fmt.Sprintf("Processing error: %v", r))
		}
	}()
	return w.processor.ProcessItem(ctx, item, opts)
}

func (w *Worker) workSingle(ctx context.Context, t *Task) error {
	if w.revoked(ctx, t) {
		zap.S().Named("worker").Infow("task revoked, skipping", "task_id", t.ID)
		return nil
	}
	reply := w.validate(ctx, t.Single.Request)
	if w.revoked(ctx, t) {
		return nil
	}
	return w.reply(ctx, t, reply)
}

func (w *Worker) validate(ctx context.Context, req ValidateRequest) (reply *SingleReply) {
	defer func() {
		if r := recover(); r != nil {
			reply = &SingleReply{Error: fmt.Sprintf("Processing error: %v", r), ErrorKind: "internal"}
		}
	}()
	report, err := w.processor.Validate(ctx, req)
	if err == nil {
		return &SingleReply{Report: report}
	}
	var parseErr *structure.ParseError
	var inputErr *structure.InputError
	var checkErr *validation.UnknownCheckError
	switch {
	case errors.As(err, &parseErr):
		return &SingleReply{Error: parseErr.Error(), ErrorKind: "parse", Errors: parseErr.Errors, Warnings: parseErr.Warnings}
	case errors.As(err, &inputErr):
		return &SingleReply{Error: inputErr.Error(), ErrorKind: "input"}
	case errors.As(err, &checkErr):
		return &SingleReply{Error: checkErr.Error(), ErrorKind: "checks"}
	}
	return &SingleReply{Error: err.Error(), ErrorKind: "internal"}
}

func (w *Worker) revoked(ctx context.Context, t *Task) bool {
	revoked, err := w.queue.kv.Exists(ctx, RevokedKey(t.ID))
	return err == nil && revoked
}

func (w *Worker) reply(ctx context.Context, t *Task, reply *SingleReply) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	key := ReplyKey(t.ID)
	return w.withRetry(ctx, func() error {
		if err := w.queue.kv.RPush(ctx, key, string(b)); err != nil {
			return err
		}
		return w.queue.kv.Expire(ctx, key, replyTTL)
	})
}

// withRetry runs fn up to WriteRetries times with doubling backoff.
func (w *Worker) withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := w.opts.WriteBackoff
	for attempt := 1; attempt <= w.opts.WriteRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == w.opts.WriteRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
