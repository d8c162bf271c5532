package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/pkg/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging emits one structured line per request. It must come after the
// request-id middleware so the id is available on the context.
func Logging(l logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		}
		if requestID, ok := RequestIDFromContext(r.Context()); ok {
			fields = append(fields, zap.String("request_id", requestID))
		}

		l.Info("request", fields...)
	})
}
