// Package middleware holds the HTTP middleware chain applied around the
// API handlers.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

const (
	requestIDTraceKey = "request_id"
	requestIDHeader   = "X-Request-Id"
)

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestID tags every request with a fresh id, exposed on the response
// headers, the request context and the active span. It must come after the
// tracing middleware and before the logging middleware.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := uuid.NewRandom()
		requestID := id.String()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(requestIDTraceKey, requestID))
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
