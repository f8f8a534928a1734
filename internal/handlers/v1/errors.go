package v1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/handlers/validator"
	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/pkg/requestid"
)

type ErrorResponse struct {
	Error     string  `json:"error"`
	Details   any     `json:"details,omitempty"`
	Detail    any     `json:"detail,omitempty"`
	RequestId *string `json:"request_id,omitempty"`
}

type parseDetail struct {
	Error    string   `json:"error"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (h *ServiceHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errorResponse(err)
	body.RequestId = requestid.FromContextPtr(r.Context())
	if status == http.StatusInternalServerError {
		zap.S().Named("handler").Errorw("request failed", "path", r.URL.Path, "request_id", requestid.FromContext(r.Context()), "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func (h *ServiceHandler) errorResponse(err error) (int, ErrorResponse) {
	switch e := err.(type) {
	case *service.ErrParse:
		detail := parseDetail{Error: e.Error(), Errors: e.Errors, Warnings: e.Warnings}
		if detail.Warnings == nil {
			detail.Warnings = []string{}
		}
		return http.StatusBadRequest, ErrorResponse{
			Error:   e.Error(),
			Details: map[string]any{"errors": detail.Errors, "warnings": detail.Warnings},
			Detail:  detail,
		}
	case *validator.ErrInvalidRequest:
		return http.StatusUnprocessableEntity, ErrorResponse{Error: e.Error(), Details: e.Fields}
	case *service.ErrValidation:
		return http.StatusUnprocessableEntity, ErrorResponse{Error: e.Error()}
	case *service.ErrResourceNotFound:
		return http.StatusNotFound, ErrorResponse{Error: e.Error()}
	case *service.ErrTimeout:
		return http.StatusGatewayTimeout, ErrorResponse{Error: e.Error()}
	case *service.ErrFileCorrupted, *service.ErrBatchTooLarge:
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case *service.ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: e.Error()}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"}
	}
	if h.opts.Debug {
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
}

// badRequest reports a body or parameter that could not be decoded.
func (h *ServiceHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, ErrorResponse{Error: message, RequestId: requestid.FromContextPtr(r.Context())})
}
