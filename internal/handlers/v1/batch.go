package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/ingest"
	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

// multipart framing allowance on top of the file size cap
const uploadOverhead = 1 << 20

type BatchCreated struct {
	JobID          string          `json:"job_id"`
	Status         model.JobStatus `json:"status"`
	TotalMolecules int             `json:"total_molecules"`
	Queue          string          `json:"queue"`
}

type batchForm struct {
	Checks   []string `json:"checks" validate:"omitempty,dive,check_name"`
	Catalogs []string `json:"catalogs" validate:"omitempty,dive,catalog_name"`
}

// CreateBatch accepts a multipart upload with the file under "file".
func (h *ServiceHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxFileSize+uploadOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, r, service.NewErrFileTooLarge(tooLarge.Limit, h.opts.MaxFileSize))
			return
		}
		h.respondError(w, r, service.NewErrFileCorrupted(fmt.Sprintf("failed to read multipart form: %v", err)))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, service.NewErrFileCorrupted("file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, r, service.NewErrFileCorrupted(fmt.Sprintf("failed to read file: %v", err)))
		return
	}

	form := batchForm{Checks: listValue(r, "checks"), Catalogs: listValue(r, "catalogs")}
	if err := h.validator.Struct(form); err != nil {
		h.respondError(w, r, err)
		return
	}
	structureColumn := r.FormValue("smiles_column")
	if structureColumn == "" {
		structureColumn = r.FormValue("structure_column")
	}
	upload := service.Upload{
		Filename: header.Filename,
		Data:     data,
		Columns:  ingest.Options{StructureColumn: structureColumn, NameColumn: r.FormValue("name_column")},
		Options: model.JobOptions{
			Checks:                 form.Checks,
			IncludeAlerts:          cast.ToBool(r.FormValue("include_alerts")),
			IncludeScoring:         cast.ToBool(r.FormValue("include_scoring")),
			IncludeStandardization: cast.ToBool(r.FormValue("include_standardization")),
			Catalogs:               form.Catalogs,
		},
	}

	job, err := h.svc.Batches.Create(r.Context(), upload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	zap.S().Named("batch_handler").Infow("batch submitted", "job_id", job.ID, "total", job.Total, "file", header.Filename)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, BatchCreated{JobID: job.ID, Status: job.Status, TotalMolecules: job.Total, Queue: job.Queue})
}

func (h *ServiceHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Batches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *ServiceHandler) GetBatchResults(w http.ResponseWriter, r *http.Request) {
	q, err := resultsQuery(r)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	page, err := h.svc.Batches.Results(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

func (h *ServiceHandler) GetBatchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Batches.Statistics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

func (h *ServiceHandler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Batches.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *ServiceHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Batches.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resultsQuery reads page, page_size, score_min, score_max, status and indices. The
// min_score, max_score and status_filter spellings are accepted too.
func resultsQuery(r *http.Request) (service.ResultsQuery, error) {
	values := r.URL.Query()
	var q service.ResultsQuery
	var err error
	if q.Page, err = intParam(values.Get("page")); err != nil {
		return q, fmt.Errorf("page: %w", err)
	}
	if q.PageSize, err = intParam(values.Get("page_size")); err != nil {
		return q, fmt.Errorf("page_size: %w", err)
	}
	if q.MinScore, err = scoreParam(firstOf(values.Get("score_min"), values.Get("min_score"))); err != nil {
		return q, fmt.Errorf("score_min: %w", err)
	}
	if q.MaxScore, err = scoreParam(firstOf(values.Get("score_max"), values.Get("max_score"))); err != nil {
		return q, fmt.Errorf("score_max: %w", err)
	}
	switch status := model.ItemStatus(firstOf(values.Get("status"), values.Get("status_filter"))); status {
	case "":
	case model.ItemStatusSuccess, model.ItemStatusError:
		q.Status = status
	default:
		return q, fmt.Errorf("status must be %s or %s", model.ItemStatusSuccess, model.ItemStatusError)
	}
	if v := values.Get("indices"); v != "" {
		if q.Indices, err = indicesParam(v); err != nil {
			return q, fmt.Errorf("indices: %w", err)
		}
	}
	return q, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return cast.ToIntE(v)
}

func scoreParam(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 100 {
		return nil, fmt.Errorf("must be between 0 and 100")
	}
	return &n, nil
}

func indicesParam(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := cast.ToIntE(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// listValue reads a form list sent either as repeated fields or comma separated.
func listValue(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
