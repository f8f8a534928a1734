package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/chemaudit/chemaudit/internal/handlers/validator"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/service"
)

// Services groups what the handlers call.
type Services struct {
	Validation  *service.ValidationService
	Batches     *service.BatchService
	Exports     *service.ExportService
	Alerts      *service.AlertsService
	Standardize *service.StandardizeService
	Health      *service.HealthService
	Hub         *progress.Hub
}

type Options struct {
	// Debug exposes internal error messages in responses.
	Debug          bool
	MaxFileSize    int64
	AllowedOrigins []string
}

type ServiceHandler struct {
	svc       Services
	validator *validator.Validator
	upgrader  *websocket.Upgrader
	opts      Options
}

func NewServiceHandler(services Services, opts Options) *ServiceHandler {
	checks := services.Validation.CheckNames()
	catalogs := make([]string, 0)
	for _, c := range services.Alerts.Catalogs() {
		catalogs = append(catalogs, c.Name)
	}

	v := validator.NewValidator()
	v.Register(validator.NewStructureValidationRules()...)
	v.Register(validator.NewOptionValidationRules(checks, catalogs)...)
	v.Register(validator.NewExportValidationRules()...)

	return &ServiceHandler{
		svc:       services,
		validator: v,
		upgrader:  progress.NewUpgrader(opts.AllowedOrigins),
		opts:      opts,
	}
}

// Routes mounts the /api/v1 endpoints on r.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Get("/health", h.GetHealth)

	r.Post("/validate", h.Validate)
	r.Post("/validate/async", h.ValidateAsync)
	r.Get("/checks", h.ListChecks)

	r.Post("/alerts", h.ScreenAlerts)
	r.Post("/alerts/quick-check", h.QuickCheckAlerts)
	r.Get("/alerts/catalogs", h.ListCatalogs)

	r.Post("/standardize", h.Standardize)
	r.Get("/standardize/options", h.StandardizeOptions)

	r.Route("/batch", func(r chi.Router) {
		r.Post("/", h.CreateBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Delete("/", h.DeleteBatch)
			r.Get("/results", h.GetBatchResults)
			r.Get("/stats", h.GetBatchStats)
			r.Post("/cancel", h.CancelBatch)
			r.Get("/export", h.ExportBatch)
			r.Post("/export", h.ExportBatch)
		})
	})

	r.Get("/ws/batch/{id}", h.StreamProgress)
}
