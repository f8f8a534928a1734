package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/chemaudit/chemaudit/pkg/requestid"
)

// RequestID resolves the id of the request and echoes it in the response header.
// A caller supplied X-Request-Id wins over the chi generated id; without either a new id is minted.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.Sanitize(r.Header.Get(requestid.Header))
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		if id == "" {
			id = requestid.New()
		}

		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(requestid.WithID(r.Context(), id)))
	})
}
