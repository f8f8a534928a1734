package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

const (
	replyTTL   = 60 * time.Second
	revokedTTL = 300 * time.Second
)

var ErrTaskTimeout = errors.New("task did not finish in time")

// Source yields the items of a job in index order and io.EOF after the last one.
type Source interface {
	Next() (Item, error)
}

// SelectQueue routes small jobs to the high priority tier.
func SelectQueue(total, threshold int) string {
	if total <= threshold {
		return QueueHigh
	}
	return QueueDefault
}

type Dispatcher struct {
	queue     *Queue
	tracker   *progress.Tracker
	chunkSize int
	threshold int
}

func NewDispatcher(queue *Queue, tracker *progress.Tracker, chunkSize, threshold int) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if threshold < 0 {
		threshold = SmallJobThreshold
	}
	return &Dispatcher{queue: queue, tracker: tracker, chunkSize: chunkSize, threshold: threshold}
}

func (d *Dispatcher) ChunkSize() int {
	return d.chunkSize
}

// QueueFor returns the tier for a job of total items.
func (d *Dispatcher) QueueFor(total int) string {
	return SelectQueue(total, d.threshold)
}

// Dispatch moves job to processing and enqueues its items in chunks on job.Queue. It returns
// once every chunk is enqueued. A source failure fails the job.
func (d *Dispatcher) Dispatch(ctx context.Context, job *model.Job, src Source) (int, error) {
	logger := zap.S().Named("dispatcher")
	if _, err := d.tracker.Start(ctx, job.ID); err != nil {
		return 0, fmt.Errorf("starting job %s: %w", job.ID, err)
	}

	chunkSize := job.ChunkSize
	if chunkSize <= 0 {
		chunkSize = d.chunkSize
	}
	chunkIndex, count := 0, 0
	items := make([]Item, 0, chunkSize)
	flush := func() error {
		if len(items) == 0 {
			return nil
		}
		task := &Task{
			Kind:  KindBatchChunk,
			Queue: job.Queue,
			Chunk: &ChunkArgs{JobID: job.ID, ChunkIndex: chunkIndex, Items: items, Options: job.Options},
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			return err
		}
		chunkIndex++
		items = make([]Item, 0, chunkSize)
		return nil
	}

	for {
		item, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, d.fail(ctx, job.ID, err)
		}
		items = append(items, item)
		count++
		if len(items) == chunkSize {
			if err := flush(); err != nil {
				return count, d.fail(ctx, job.ID, err)
			}
		}
	}
	if err := flush(); err != nil {
		return count, d.fail(ctx, job.ID, err)
	}
	if count != job.Total {
		return count, d.fail(ctx, job.ID, fmt.Errorf("expected %d molecules, read %d", job.Total, count))
	}

	metrics.IncreaseBatchesSubmitted(job.Queue)
	logger.Infow("job dispatched", "job_id", job.ID, "queue", job.Queue, "chunks", chunkIndex, "total", count)
	return count, nil
}

func (d *Dispatcher) fail(ctx context.Context, jobID string, cause error) error {
	zap.S().Named("dispatcher").Errorw("dispatch failed", "job_id", jobID, "error", cause)
	if _, err := d.tracker.Fail(ctx, jobID, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Validate runs one validation through the high priority tier and waits up to timeout for the
// reply. On expiry the task is revoked and ErrTaskTimeout returned.
func (d *Dispatcher) Validate(ctx context.Context, req ValidateRequest, timeout time.Duration) (*SingleReply, error) {
	task := &Task{
		ID:     uuid.NewString(),
		Kind:   KindValidateSingle,
		Queue:  QueueHigh,
		Single: &SingleArgs{Request: req},
	}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return nil, err
	}

	raw, err := d.queue.kv.BLPop(ctx, timeout, ReplyKey(task.ID))
	if errors.Is(err, kvstore.ErrNil) || errors.Is(err, context.DeadlineExceeded) {
		if err := d.queue.kv.SetEX(context.Background(), RevokedKey(task.ID), "1", revokedTTL); err != nil {
			zap.S().Named("dispatcher").Warnw("failed to revoke task", "task_id", task.ID, "error", err)
		}
		return nil, ErrTaskTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("waiting for task %s: %w", task.ID, err)
	}
	var reply SingleReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return &reply, nil
}
