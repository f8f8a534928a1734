package requestid

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header carries a caller supplied request id.
const Header = "X-Request-Id"

// maxLength bounds ids accepted from callers.
const maxLength = 128

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// Sanitize returns id when it is short and printable, empty otherwise.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxLength {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id, empty when none was set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContextPtr is FromContext for response bodies where the id is optional.
func FromContextPtr(ctx context.Context) *string {
	if id := FromContext(ctx); id != "" {
		return &id
	}
	return nil
}

func FromRequest(r *http.Request) string {
	return FromContext(r.Context())
}
