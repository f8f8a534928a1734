// Package usage keeps per-day usage counters. Updates run as background tasks bounded by the
// recorder's lifetime; their failures are logged and never reach the caller.
package usage

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chemaudit/chemaudit/internal/kvstore"
)

const (
	CounterValidations    = "validations"
	CounterBatchMolecules = "batch_molecules"
	CounterBatches        = "batches"

	keyPrefix     = "stats:"
	dayLayout     = "20060102"
	maxInFlight   = 64
	updateTimeout = 2 * time.Second
)

var counters = []string{CounterValidations, CounterBatchMolecules, CounterBatches}

var incrScript = kvstore.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if v == tonumber(ARGV[1]) then redis.call('EXPIRE', KEYS[1], ARGV[2]) end
return v
`)

func Key(counter string, day time.Time) string {
	return keyPrefix + counter + ":" + day.UTC().Format(dayLayout)
}

type Recorder struct {
	kv     kvstore.Store
	ttl    time.Duration
	now    func() time.Time
	group  *errgroup.Group
	lock   sync.RWMutex
	closed bool
}

func NewRecorder(kv kvstore.Store, ttl time.Duration) *Recorder {
	g := &errgroup.Group{}
	g.SetLimit(maxInFlight)
	return &Recorder{kv: kv, ttl: ttl, now: time.Now, group: g}
}

func (r *Recorder) RecordValidation() {
	r.add(CounterValidations, 1)
}

func (r *Recorder) RecordBatch(molecules int) {
	r.add(CounterBatches, 1)
	r.add(CounterBatchMolecules, molecules)
}

// add schedules the increment. It is dropped when the recorder is closed or saturated.
func (r *Recorder) add(counter string, n int) {
	if n <= 0 {
		return
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return
	}
	key := Key(counter, r.now())
	started := r.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		if _, err := r.kv.Eval(ctx, incrScript, []string{key}, n, int(r.ttl.Seconds())); err != nil {
			zap.S().Named("usage").Warnw("failed to update usage counter", "key", key, "error", err)
		}
		return nil
	})
	if !started {
		zap.S().Named("usage").Debugw("usage update dropped", "key", key)
	}
}

// Summary returns the counters of day.
func (r *Recorder) Summary(ctx context.Context, day time.Time) (map[string]int64, error) {
	out := make(map[string]int64, len(counters))
	for _, c := range counters {
		v, err := r.kv.Get(ctx, Key(c, day))
		if errors.Is(err, kvstore.ErrNil) {
			out[c] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		out[c] = n
	}
	return out, nil
}

// Close stops accepting updates and waits for the scheduled ones, at most until ctx is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.lock.Lock()
	r.closed = true
	r.lock.Unlock()

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
