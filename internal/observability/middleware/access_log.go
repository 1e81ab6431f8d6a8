package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// LogRequests logs method, path, status and latency for every request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		slog.Info("http request",
			append([]any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.status,
				"duration", time.Since(start).String(),
			}, LogAttrs(r.Context())...)...,
		)
	})
}
