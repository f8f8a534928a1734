// Package progress computes job progress, publishes it and fans it out to streaming clients.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/events"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

// Publisher queues a payload for a channel without blocking.
type Publisher interface {
	Write(topic string, payload []byte) error
}

// Tracker turns chunk deltas into job snapshots and publishes them on the job's channel.
type Tracker struct {
	store     store.Store
	publisher Publisher
	now       func() time.Time
}

func NewTracker(s store.Store, publisher Publisher) *Tracker {
	return &Tracker{store: s, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Percent is the integer percentage of processed over total.
func Percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 100 {
		return 100
	}
	return p
}

// ETA estimates the remaining seconds from the elapsed time and the processed share.
func ETA(elapsed time.Duration, processed, total int) int {
	if processed < 1 {
		processed = 1
	}
	remaining := total - processed
	if remaining < 0 {
		remaining = 0
	}
	return int(elapsed.Seconds() * float64(remaining) / float64(processed))
}

// Snapshot builds the wire message for job.
func Snapshot(job *model.Job) events.ProgressEvent {
	return events.ProgressEvent{
		JobID:        job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		Processed:    job.Processed,
		Total:        job.Total,
		EtaSeconds:   job.EtaSeconds,
		ErrorMessage: job.ErrorMessage,
	}
}

// Start moves a pending job to processing and announces it.
func (t *Tracker) Start(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := t.store.Jobs().Transition(ctx, jobID, model.JobStatusProcessing, "")
	if err != nil {
		return nil, err
	}
	t.Publish(job)
	return job, nil
}

// ChunkDone records the counters of one chunk. Counters of an already recorded chunk are ignored.
// Any call that sees a processing job with processed at total completes it, so a redelivered
// final chunk finishes a job whose completion was interrupted.
func (t *Tracker) ChunkDone(ctx context.Context, jobID string, chunk, processed, success, errs int) (*model.Job, error) {
	counted, err := t.store.Jobs().RecordChunk(ctx, jobID, chunk, processed, success, errs)
	if err != nil {
		return nil, err
	}
	job, err := t.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusProcessing {
		return job, nil
	}
	if job.Processed >= job.Total {
		return t.finish(ctx, job, model.JobStatusComplete, "")
	}
	if !counted {
		return job, nil
	}

	progress := Percent(job.Processed, job.Total)
	eta := ETA(job.Elapsed(t.now()), job.Processed, job.Total)
	if err := t.store.Jobs().UpdateProgress(ctx, jobID, progress, &eta); err != nil {
		// the next chunk writes a fresh snapshot
		zap.S().Named("progress").Warnw("failed to update job progress", "job_id", jobID, "error", err)
	}
	job.Progress = progress
	job.EtaSeconds = &eta
	t.Publish(job)
	return job, nil
}

// Fail moves a job to failed with message. A pending job passes through processing.
func (t *Tracker) Fail(ctx context.Context, jobID, message string) (*model.Job, error) {
	return t.terminate(ctx, jobID, model.JobStatusFailed, message)
}

// Cancel moves a job to cancelled. A terminal job is returned unchanged.
func (t *Tracker) Cancel(ctx context.Context, jobID string) (*model.Job, error) {
	return t.terminate(ctx, jobID, model.JobStatusCancelled, "")
}

func (t *Tracker) terminate(ctx context.Context, jobID string, to model.JobStatus, message string) (*model.Job, error) {
	job, err := t.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	if job.Status == model.JobStatusPending {
		if _, err := t.store.Jobs().Transition(ctx, jobID, model.JobStatusProcessing, ""); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return nil, err
		}
	}
	return t.finish(ctx, job, to, message)
}

// finish writes the statistics, then the terminal state, then publishes the terminal message.
// Losing the transition race to another writer is not an error.
func (t *Tracker) finish(ctx context.Context, job *model.Job, to model.JobStatus, message string) (*model.Job, error) {
	items, err := t.store.Results().List(ctx, job.ID, nil)
	if err != nil {
		return nil, err
	}
	stats := model.NewStatistics(items, job.Elapsed(t.now()))
	if err := t.store.Statistics().Save(ctx, job.ID, stats); err != nil {
		return nil, fmt.Errorf("saving statistics: %w", err)
	}

	final, err := t.store.Jobs().Transition(ctx, job.ID, to, message)
	if errors.Is(err, store.ErrInvalidTransition) {
		return t.store.Jobs().Get(ctx, job.ID)
	}
	if err != nil {
		return nil, err
	}
	metrics.IncreaseBatchesFinished(string(final.Status))
	zap.S().Named("progress").Infow("job finished", "job_id", final.ID, "status", final.Status,
		"processed", final.Processed, "total", final.Total)
	t.Publish(final)
	return final, nil
}

// Publish queues the snapshot of job on its channel. Failures are logged only.
func (t *Tracker) Publish(job *model.Job) {
	b, err := json.Marshal(Snapshot(job))
	if err != nil {
		zap.S().Named("progress").Errorw("failed to encode progress", "job_id", job.ID, "error", err)
		return
	}
	if err := t.publisher.Write(store.ProgressChannel(job.ID), b); err != nil {
		metrics.IncreaseProgressDropped()
		zap.S().Named("progress").Warnw("failed to publish progress", "job_id", job.ID, "error", err)
	}
}
