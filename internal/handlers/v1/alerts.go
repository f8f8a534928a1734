package v1

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/structure"
)

type AlertsBody struct {
	Molecule string   `json:"molecule" validate:"required,max=10000,structure_text"`
	Format   string   `json:"format" validate:"omitempty,structure_format"`
	Catalogs []string `json:"catalogs" validate:"omitempty,dive,catalog_name"`
}

func (h *ServiceHandler) decodeAlertsBody(w http.ResponseWriter, r *http.Request) (*service.AlertsRequest, bool) {
	var body AlertsBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.badRequest(w, r, "invalid request body: "+err.Error())
		return nil, false
	}
	if err := h.validator.Struct(body); err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	format, _ := structure.ParseFormat(body.Format)
	return &service.AlertsRequest{Molecule: body.Molecule, Format: format, Catalogs: body.Catalogs}, true
}

func (h *ServiceHandler) ScreenAlerts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAlertsBody(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Alerts.Screen(*req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *ServiceHandler) QuickCheckAlerts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAlertsBody(w, r)
	if !ok {
		return
	}
	found, err := h.svc.Alerts.QuickCheck(*req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"has_alerts": found})
}

func (h *ServiceHandler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"catalogs": h.svc.Alerts.Catalogs()})
}
