package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Logging writes one line per request.
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("remote", r.RemoteAddr),
		)
	})
}
