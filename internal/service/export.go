package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/service/export"
	"github.com/chemaudit/chemaudit/internal/store"
)

// ExportChunkSize is the write size of a streamed download.
const ExportChunkSize = 1 << 20

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// WriteTo writes the file in ExportChunkSize pieces, calling flush after each one.
func (f *ExportFile) WriteTo(w io.Writer, flush func()) (int64, error) {
	var written int64
	for start := 0; start < len(f.Data); start += ExportChunkSize {
		end := min(start+ExportChunkSize, len(f.Data))
		n, err := w.Write(f.Data[start:end])
		written += int64(n)
		if err != nil {
			return written, err
		}
		if flush != nil {
			flush()
		}
	}
	return written, nil
}

type ExportService struct {
	batches   *BatchService
	store     store.Store
	renderers *export.Factory
}

func NewExportService(batches *BatchService, s store.Store, renderers *export.Factory) *ExportService {
	return &ExportService{batches: batches, store: s, renderers: renderers}
}

// Export renders the results matching q. Only the filters of q are used, paging is ignored.
func (s *ExportService) Export(ctx context.Context, id string, format export.Format, q ResultsQuery) (*ExportFile, error) {
	renderer, err := s.renderers.Get(format)
	if err != nil {
		return nil, NewErrValidation(err.Error())
	}
	job, err := s.batches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Results().List(ctx, id, q.filter())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewErrNoExportResults(id)
	}
	stats, err := s.batches.statistics(ctx, job)
	if err != nil {
		return nil, err
	}

	generated := job.UpdatedAt
	if job.CompletedAt != nil {
		generated = *job.CompletedAt
	}
	data, err := renderer.Render(&export.Data{Job: job, Items: items, Statistics: stats, GeneratedAt: generated})
	if err != nil {
		return nil, err
	}
	zap.S().Named("export_service").Infow("batch exported", "job_id", id, "format", format, "items", len(items), "bytes", len(data))
	return &ExportFile{
		Filename:    export.Filename(job.ID, generated, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}
