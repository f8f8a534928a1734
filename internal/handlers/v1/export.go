package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/service/export"
)

type ExportBody struct {
	Format   string `json:"format" validate:"omitempty,export_format"`
	Indices  []int  `json:"indices" validate:"omitempty,dive,gte=0"`
	ScoreMin *int   `json:"score_min" validate:"omitempty,gte=0,lte=100"`
	ScoreMax *int   `json:"score_max" validate:"omitempty,gte=0,lte=100"`
}

// ExportBatch streams the filtered results as a file. POST requests may carry the
// filters in the body; body values override the query.
func (h *ServiceHandler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	q, err := resultsQuery(r)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	token := r.URL.Query().Get("format")
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		var body ExportBody
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			h.badRequest(w, r, "invalid request body: "+err.Error())
			return
		}
		if err := h.validator.Struct(body); err != nil {
			h.respondError(w, r, err)
			return
		}
		if body.Format != "" {
			token = body.Format
		}
		if len(body.Indices) > 0 {
			q.Indices = body.Indices
		}
		if body.ScoreMin != nil {
			q.MinScore = body.ScoreMin
		}
		if body.ScoreMax != nil {
			q.MaxScore = body.ScoreMax
		}
	}
	if token == "" {
		token = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(token)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	file, err := h.svc.Exports.Export(r.Context(), chi.URLParam(r, "id"), format, q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if _, err := file.WriteTo(w, flush); err != nil {
		zap.S().Named("export_handler").Warnw("export download interrupted", "file", file.Filename, "error", err)
	}
}
