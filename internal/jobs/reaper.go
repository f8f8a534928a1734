package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/progress"
)

// Reaper keeps the leases of the local workers alive and recovers the tasks of workers
// whose lease expired.
type Reaper struct {
	kv        kvstore.Store
	queue     *Queue
	tracker   *progress.Tracker
	leaseTTL  time.Duration
	heartbeat time.Duration
	interval  time.Duration
	local     map[string]bool
}

func NewReaper(queue *Queue, tracker *progress.Tracker, leaseTTL, heartbeat, interval time.Duration) *Reaper {
	if heartbeat <= 0 || heartbeat >= leaseTTL {
		heartbeat = leaseTTL / 3
	}
	return &Reaper{
		kv:        queue.kv,
		queue:     queue,
		tracker:   tracker,
		leaseTTL:  leaseTTL,
		heartbeat: heartbeat,
		interval:  interval,
		local:     map[string]bool{},
	}
}

// Register announces the workers and takes their first lease.
func (r *Reaper) Register(ctx context.Context, workers ...string) error {
	for _, id := range workers {
		r.local[id] = true
		if _, err := r.kv.SAdd(ctx, workersKey, id); err != nil {
			return fmt.Errorf("registering worker %s: %w", id, err)
		}
	}
	return r.renew(ctx)
}

// Deregister hands back whatever the workers still hold and removes them.
func (r *Reaper) Deregister(ctx context.Context) {
	for id := range r.local {
		if n, _, err := r.queue.Recover(ctx, id); err != nil {
			zap.S().Named("reaper").Warnw("failed to release tasks", "worker_id", id, "error", err)
		} else if n > 0 {
			zap.S().Named("reaper").Infow("released tasks", "worker_id", id, "tasks", n)
		}
		_ = r.kv.Del(ctx, LeaseKey(id))
		_, _ = r.kv.SRem(ctx, workersKey, id)
	}
}

func (r *Reaper) renew(ctx context.Context) error {
	for id := range r.local {
		if err := r.kv.SetEX(ctx, LeaseKey(id), time.Now().UTC().Format(time.RFC3339), r.leaseTTL); err != nil {
			return fmt.Errorf("renewing lease of %s: %w", id, err)
		}
	}
	return nil
}

// Reap recovers the processing lists of every registered worker without a lease.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	logger := zap.S().Named("reaper")
	members, err := r.kv.SMembers(ctx, workersKey)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range members {
		if r.local[id] {
			continue
		}
		alive, err := r.kv.Exists(ctx, LeaseKey(id))
		if err != nil {
			return total, err
		}
		if alive {
			continue
		}
		moved, dead, err := r.queue.Recover(ctx, id)
		if err != nil {
			return total, err
		}
		for _, t := range dead {
			r.failDead(ctx, t)
		}
		if _, err := r.kv.SRem(ctx, workersKey, id); err != nil {
			return total, err
		}
		if moved > 0 {
			logger.Infow("recovered tasks of lost worker", "worker_id", id, "tasks", moved, "dead_lettered", len(dead))
		}
		total += moved
	}
	return total, nil
}

func (r *Reaper) failDead(ctx context.Context, t *Task) {
	if t.Kind != KindBatchChunk || t.Chunk == nil {
		return
	}
	msg := fmt.Sprintf("chunk %d failed after %d deliveries: worker lost", t.Chunk.ChunkIndex, t.Deliveries)
	if _, err := r.tracker.Fail(ctx, t.Chunk.JobID, msg); err != nil {
		zap.S().Named("reaper").Errorw("failed to fail job", "job_id", t.Chunk.JobID, "error", err)
	}
}

// Run renews the leases and reaps lost workers until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	logger := zap.S().Named("reaper")
	beat := jitterbug.New(r.heartbeat, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer beat.Stop()
	reap := jitterbug.New(r.interval, &jitterbug.Norm{Stdev: r.interval / 10, Mean: 0})
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-beat.C:
			if err := r.renew(ctx); err != nil {
				logger.Warnw("lease renewal failed", "error", err)
			}
		case <-reap.C:
			if _, err := r.Reap(ctx); err != nil {
				logger.Warnw("reaping failed", "error", err)
			}
		}
	}
}
