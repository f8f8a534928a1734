package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/progress"
)

// StreamProgress upgrades to a websocket and streams the progress of one job until it ends.
func (h *ServiceHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Batches.Get(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		zap.S().Named("ws_handler").Debugw("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	if err := progress.Serve(r.Context(), h.svc.Hub, conn, id); err != nil {
		zap.S().Named("ws_handler").Warnw("progress stream ended with error", "job_id", id, "error", err)
	}
}
