package jobs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/store"
)

type PoolOptions struct {
	Concurrency int
	// ReservedHigh workers only serve the high priority tier.
	ReservedHigh    int
	LeaseTTL        time.Duration
	HeartbeatPeriod time.Duration
	ReaperInterval  time.Duration
	Worker          WorkerOptions
}

// Pool runs the workers of one process together with their lease reaper.
type Pool struct {
	workers []*Worker
	reaper  *Reaper
}

func NewPool(queue *Queue, processor *Processor, s store.Store, tracker *progress.Tracker, opts PoolOptions) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ReservedHigh >= opts.Concurrency {
		// keep at least one worker on every tier
		opts.ReservedHigh = opts.Concurrency - 1
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Second
	}
	if opts.ReaperInterval <= 0 {
		opts.ReaperInterval = opts.LeaseTTL / 2
	}

	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	prefix := fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])

	p := &Pool{reaper: NewReaper(queue, tracker, opts.LeaseTTL, opts.HeartbeatPeriod, opts.ReaperInterval)}
	for i := 0; i < opts.Concurrency; i++ {
		tiers := Tiers
		if i < opts.ReservedHigh {
			tiers = []string{QueueHigh}
		}
		p.workers = append(p.workers, NewWorker(fmt.Sprintf("%s-%d", prefix, i), tiers, queue, processor, s, tracker, opts.Worker))
	}
	return p
}

func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Run blocks until ctx is done and every worker finished its current task.
func (p *Pool) Run(ctx context.Context) error {
	ids := make([]string, 0, len(p.workers))
	for _, w := range p.workers {
		ids = append(ids, w.ID())
	}
	if err := p.reaper.Register(ctx, ids...); err != nil {
		return err
	}
	zap.S().Named("worker_pool").Infow("worker pool started", "workers", len(p.workers))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error { return p.reaper.Run(gctx) })
	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.reaper.Deregister(shutdownCtx)
	zap.S().Named("worker_pool").Info("worker pool stopped")
	return err
}
