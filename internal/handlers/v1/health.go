package v1

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/chemaudit/chemaudit/internal/service"
)

func (h *ServiceHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health.Check(r.Context())
	if report.Status != service.HealthStatusHealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}
