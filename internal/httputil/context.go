package httputil

import (
	"context"
	"net/http"

	"arbor/internal/domain/models/wiki"
)

// Context key type to avoid collisions
type contextKey string

const (
	operatorIDKey contextKey = "operatorID"
	principalKey  contextKey = "principal"
)

// WithOperatorID adds the authenticated operator id to the request context
func WithOperatorID(r *http.Request, operatorID string) *http.Request {
	ctx := context.WithValue(r.Context(), operatorIDKey, operatorID)
	return r.WithContext(ctx)
}

// GetOperatorID retrieves the operator id from context, returns empty string
// if not found
func GetOperatorID(r *http.Request) string {
	operatorID, _ := r.Context().Value(operatorIDKey).(string)
	return operatorID
}

// WithPrincipal adds the operator's membership principal to the request context
func WithPrincipal(r *http.Request, p *wiki.Principal) *http.Request {
	ctx := context.WithValue(r.Context(), principalKey, p)
	return r.WithContext(ctx)
}

// GetPrincipal retrieves the membership principal from context, returns nil
// if not found
func GetPrincipal(r *http.Request) *wiki.Principal {
	p, _ := r.Context().Value(principalKey).(*wiki.Principal)
	return p
}
