package v1

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/standardize"
	"github.com/chemaudit/chemaudit/internal/structure"
)

type StandardizeBody struct {
	Molecule string               `json:"molecule" validate:"required,max=10000,structure_text"`
	Format   string               `json:"format" validate:"omitempty,structure_format"`
	Options  *standardize.Options `json:"options"`
}

func (h *ServiceHandler) Standardize(w http.ResponseWriter, r *http.Request) {
	var body StandardizeBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if err := h.validator.Struct(body); err != nil {
		h.respondError(w, r, err)
		return
	}
	format, _ := structure.ParseFormat(body.Format)
	outcome, err := h.svc.Standardize.Standardize(service.StandardizeRequest{Molecule: body.Molecule, Format: format, Options: body.Options})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, outcome)
}

func (h *ServiceHandler) StandardizeOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"steps":    h.svc.Standardize.Steps(),
		"defaults": standardize.DefaultOptions(),
	})
}
