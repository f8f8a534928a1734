package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chemaudit/chemaudit/internal/ingest"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/usage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

type BatchLimits struct {
	MaxFileSize  int64
	MaxBatchSize int
}

// Upload is a batch file together with its submission options.
type Upload struct {
	Filename string
	Data     []byte
	Columns  ingest.Options
	Options  model.JobOptions
}

type ResultsQuery struct {
	Page     int
	PageSize int
	MinScore *int
	MaxScore *int
	Status   model.ItemStatus
	Indices  []int
}

func (q ResultsQuery) filter() *store.ResultQueryFilter {
	f := store.NewResultQueryFilter()
	if q.Status != "" {
		f = f.ByStatus(q.Status)
	}
	if q.MinScore != nil {
		f = f.WithMinScore(*q.MinScore)
	}
	if q.MaxScore != nil {
		f = f.WithMaxScore(*q.MaxScore)
	}
	if len(q.Indices) > 0 {
		f = f.ByIndices(q.Indices)
	}
	return f
}

type ResultsPage struct {
	JobID      string            `json:"job_id"`
	Status     model.JobStatus   `json:"status"`
	Statistics *model.Statistics `json:"statistics"`
	*store.ResultPage
}

type BatchService struct {
	store      store.Store
	processor  *jobs.Processor
	dispatcher *jobs.Dispatcher
	tracker    *progress.Tracker
	usage      *usage.Recorder
	limits     BatchLimits

	// dispatches outlive the request that submitted them
	ctx     context.Context
	cancel  context.CancelFunc
	pending *errgroup.Group
}

func NewBatchService(s store.Store, processor *jobs.Processor, dispatcher *jobs.Dispatcher, tracker *progress.Tracker, recorder *usage.Recorder, limits BatchLimits) *BatchService {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchService{
		store:      s,
		processor:  processor,
		dispatcher: dispatcher,
		tracker:    tracker,
		usage:      recorder,
		limits:     limits,
		ctx:        ctx,
		cancel:     cancel,
		pending:    new(errgroup.Group),
	}
}

// Create registers a pending job for the upload and enqueues its chunks in the background.
func (s *BatchService) Create(ctx context.Context, upload Upload) (*model.Job, error) {
	logger := zap.S().Named("batch_service")

	if s.limits.MaxFileSize > 0 && int64(len(upload.Data)) > s.limits.MaxFileSize {
		return nil, NewErrFileTooLarge(int64(len(upload.Data)), s.limits.MaxFileSize)
	}
	upload.Columns.Toolkit = s.processor.Parser().Toolkit()
	total, err := ingest.Count(upload.Filename, upload.Data, upload.Columns)
	if err != nil {
		var fileErr *ingest.FileError
		switch {
		case errors.As(err, &fileErr), errors.Is(err, ingest.ErrNoMolecules):
			return nil, NewErrFileCorrupted(err.Error())
		}
		return nil, err
	}
	if s.limits.MaxBatchSize > 0 && total > s.limits.MaxBatchSize {
		return nil, NewErrBatchTooLarge(total, s.limits.MaxBatchSize)
	}
	if err := s.checkOptions(upload.Options); err != nil {
		return nil, err
	}

	job, err := s.store.Jobs().Create(ctx, total, s.dispatcher.ChunkSize(), s.dispatcher.QueueFor(total), upload.Options)
	if err != nil {
		return nil, err
	}
	logger.Infow("batch job created", "job_id", job.ID, "total", total, "queue", job.Queue, "file", upload.Filename)

	s.pending.Go(func() error {
		src, err := ingest.Open(upload.Filename, upload.Data, upload.Columns)
		if err != nil {
			_, _ = s.tracker.Fail(s.ctx, job.ID, err.Error())
			return nil
		}
		if _, err := s.dispatcher.Dispatch(s.ctx, job, src); err != nil {
			logger.Errorw("failed to dispatch batch job", "job_id", job.ID, "error", err)
		}
		return nil
	})
	s.usage.RecordBatch(total)
	return job, nil
}

// checkOptions rejects unknown check and catalog names before anything is stored.
func (s *BatchService) checkOptions(opts model.JobOptions) error {
	if _, err := s.processor.Engine().Resolve(opts.Checks); err != nil {
		return mapValidateError(err)
	}
	if opts.IncludeAlerts {
		if err := s.processor.Screener().CheckCatalogs(opts.Catalogs); err != nil {
			return mapValidateError(err)
		}
	}
	return nil
}

func (s *BatchService) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Jobs().Get(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, NewErrJobNotFound(id)
	}
	return job, err
}

// Results returns one page of the filtered results with the job statistics.
func (s *BatchService) Results(ctx context.Context, id string, q ResultsQuery) (*ResultsPage, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	page, err := s.store.Results().Page(ctx, id, q.filter(), q.Page, q.PageSize)
	if err != nil {
		return nil, err
	}
	stats, err := s.statistics(ctx, job)
	if err != nil {
		return nil, err
	}
	return &ResultsPage{JobID: job.ID, Status: job.Status, Statistics: stats, ResultPage: page}, nil
}

func (s *BatchService) Statistics(ctx context.Context, id string) (*model.Statistics, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statistics(ctx, job)
}

// statistics reads the record saved at completion, or reduces the results written so far.
func (s *BatchService) statistics(ctx context.Context, job *model.Job) (*model.Statistics, error) {
	if job.Status.IsTerminal() {
		stats, err := s.store.Statistics().Get(ctx, job.ID)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
	}
	items, err := s.store.Results().List(ctx, job.ID, nil)
	if err != nil {
		return nil, err
	}
	stats := model.NewStatistics(items, job.Elapsed(time.Now().UTC()))
	return &stats, nil
}

// Cancel stops a running job. A terminal job is returned unchanged.
func (s *BatchService) Cancel(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.tracker.Cancel(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, NewErrJobNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	zap.S().Named("batch_service").Infow("batch job cancel requested", "job_id", id, "status", job.Status)
	return job, nil
}

func (s *BatchService) Delete(ctx context.Context, id string) error {
	err := s.store.Jobs().Delete(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return NewErrJobNotFound(id)
	}
	return err
}

// Close waits for in-flight dispatches. When ctx expires first they are cancelled.
func (s *BatchService) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
