package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

// JobRegistry owns the job lifecycle record. Counters only change through atomic increments.
type JobRegistry interface {
	Create(ctx context.Context, total, chunkSize int, queue string, opts model.JobOptions) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	// Transition moves the job to a new state if the move is allowed from the current one.
	Transition(ctx context.Context, id string, to model.JobStatus, errMsg string) (*model.Job, error)
	// RecordChunk adds the deltas of a processing job once per chunk index and is the only
	// writer of the counters. It reports whether this call counted. Snapshots are published
	// by progress.Tracker.ChunkDone, which wraps it.
	RecordChunk(ctx context.Context, id string, chunk, processed, success, errors int) (bool, error)
	UpdateProgress(ctx context.Context, id string, progress int, eta *int) error
	Delete(ctx context.Context, id string) error
}

var transitionScript = kvstore.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then return {0, ''} end
local allowed = false
for i = 5, #ARGV do
  if ARGV[i] == cur then allowed = true end
end
if not allowed then return {0, cur} end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[2])
if ARGV[3] ~= '' then redis.call('HSET', KEYS[1], 'error_message', ARGV[3]) end
if ARGV[4] ~= '' then redis.call('HSET', KEYS[1], ARGV[4], ARGV[2]) end
if ARGV[1] == 'complete' then
  redis.call('HSET', KEYS[1], 'progress', '100', 'eta_seconds', '0')
elseif ARGV[4] == 'completed_at' then
  redis.call('HDEL', KEYS[1], 'eta_seconds')
end
return {1, cur}
`)

var chunkScript = kvstore.NewScript(`
local added = redis.call('SADD', KEYS[2], ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[6])
if added == 0 then return 0 end
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'processing' then return 0 end
redis.call('HINCRBY', KEYS[1], 'processed', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'success', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'errors', ARGV[4])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[5])
return 1
`)

var progressScript = kvstore.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'processing' then return 0 end
redis.call('HSET', KEYS[1], 'progress', ARGV[1], 'updated_at', ARGV[3])
if ARGV[2] == '' then
  redis.call('HDEL', KEYS[1], 'eta_seconds')
else
  redis.call('HSET', KEYS[1], 'eta_seconds', ARGV[2])
end
return 1
`)

type JobStore struct {
	kv        kvstore.Store
	retention time.Duration
	now       func() time.Time
}

// Make sure we conform to JobRegistry interface
var _ JobRegistry = (*JobStore)(nil)

func NewJobStore(kv kvstore.Store, retention time.Duration, now func() time.Time) *JobStore {
	return &JobStore{kv: kv, retention: retention, now: now}
}

func (s *JobStore) Create(ctx context.Context, total, chunkSize int, queue string, opts model.JobOptions) (*model.Job, error) {
	now := s.now()
	job := &model.Job{
		ID:        uuid.NewString(),
		Status:    model.JobStatusPending,
		Total:     total,
		ChunkSize: chunkSize,
		Queue:     queue,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h, err := job.ToHash()
	if err != nil {
		return nil, err
	}
	key := JobKey(job.ID)
	if err := s.kv.HSet(ctx, key, h); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	if err := s.kv.Expire(ctx, key, s.retention); err != nil {
		return nil, fmt.Errorf("setting job retention: %w", err)
	}
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	h, err := s.kv.HGetAll(ctx, JobKey(id))
	if err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}
	if len(h) == 0 {
		return nil, ErrRecordNotFound
	}
	return model.JobFromHash(h)
}

func (s *JobStore) Transition(ctx context.Context, id string, to model.JobStatus, errMsg string) (*model.Job, error) {
	stamp := ""
	switch {
	case to == model.JobStatusProcessing:
		stamp = model.FieldStartedAt
	case to.IsTerminal():
		stamp = model.FieldCompletedAt
	}
	args := []interface{}{string(to), model.FormatTime(s.now()), errMsg, stamp}
	for _, from := range to.AllowedFrom() {
		args = append(args, string(from))
	}
	res, err := s.kv.Eval(ctx, transitionScript, []string{JobKey(id)}, args...)
	if err != nil {
		return nil, fmt.Errorf("transitioning job: %w", err)
	}
	ok, current, err := decodePair(res)
	if err != nil {
		return nil, err
	}
	if !ok {
		if current == "" {
			return nil, ErrRecordNotFound
		}
		return nil, &TransitionError{From: model.JobStatus(current), To: to}
	}
	return s.Get(ctx, id)
}

func (s *JobStore) RecordChunk(ctx context.Context, id string, chunk, processed, success, errors int) (bool, error) {
	res, err := s.kv.Eval(ctx, chunkScript, []string{JobKey(id), ChunksKey(id)},
		chunk, processed, success, errors, model.FormatTime(s.now()), int(s.retention.Seconds()))
	if err != nil {
		return false, fmt.Errorf("recording chunk: %w", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress int, eta *int) error {
	etaArg := ""
	if eta != nil {
		etaArg = strconv.Itoa(*eta)
	}
	if _, err := s.kv.Eval(ctx, progressScript, []string{JobKey(id)}, progress, etaArg, model.FormatTime(s.now())); err != nil {
		return fmt.Errorf("updating job progress: %w", err)
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	exists, err := s.kv.Exists(ctx, JobKey(id))
	if err != nil {
		return fmt.Errorf("checking job: %w", err)
	}
	if !exists {
		return ErrRecordNotFound
	}
	return s.kv.Del(ctx, JobKey(id), ResultsKey(id), ChunksKey(id), StatsKey(id))
}

func decodePair(res interface{}) (bool, string, error) {
	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return false, "", errors.New("unexpected transition script reply")
	}
	flag, _ := pair[0].(int64)
	current, _ := pair[1].(string)
	return flag == 1, current, nil
}
