package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/structure"
)

type ValidateBody struct {
	Molecule string   `json:"molecule" validate:"required,max=10000,structure_text"`
	Format   string   `json:"format" validate:"omitempty,structure_format"`
	Checks   []string `json:"checks" validate:"omitempty,dive,check_name"`
	// PreserveAromatic keeps aromatic notation in the canonical form. Defaults to true.
	PreserveAromatic *bool `json:"preserve_aromatic"`
}

func (b *ValidateBody) request() jobs.ValidateRequest {
	format, _ := structure.ParseFormat(b.Format)
	req := jobs.ValidateRequest{Molecule: b.Molecule, Format: format, Checks: b.Checks, PreserveAromatic: true}
	if b.PreserveAromatic != nil {
		req.PreserveAromatic = *b.PreserveAromatic
	}
	return req
}

func (h *ServiceHandler) decodeValidateBody(w http.ResponseWriter, r *http.Request) (*ValidateBody, bool) {
	var body ValidateBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.badRequest(w, r, "invalid request body: "+err.Error())
		return nil, false
	}
	if err := h.validator.Struct(body); err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return &body, true
}

func (h *ServiceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeValidateBody(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Validation.Validate(r.Context(), body.request())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// ValidateAsync runs the validation on a worker. The timeout query parameter is in seconds.
func (h *ServiceHandler) ValidateAsync(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeValidateBody(w, r)
	if !ok {
		return
	}
	var timeout time.Duration
	if v := r.URL.Query().Get("timeout"); v != "" {
		seconds, err := cast.ToFloat64E(v)
		if err != nil {
			h.badRequest(w, r, "timeout must be a number of seconds")
			return
		}
		timeout = time.Duration(seconds * float64(time.Second))
		if timeout < service.MinAsyncTimeout || timeout > service.MaxAsyncTimeout {
			h.respondError(w, r, service.NewErrTimeoutRange())
			return
		}
	}
	report, err := h.svc.Validation.ValidateAsync(r.Context(), body.request(), timeout)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *ServiceHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.svc.Validation.Checks())
}
