// Package middleware provides HTTP middleware for metrics collection.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hydronote/groundwatch/internal/metrics"
)

var recordHTTPRequest = metrics.RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		recordHTTPRequest(r.Method, endpoint, status, duration)
	})
}

func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/tasks/"):
		return "/api/tasks/:id"
	case strings.HasPrefix(path, "/api/forecasts/"):
		rest := strings.TrimPrefix(path, "/api/forecasts/")
		parts := strings.Split(rest, "/")
		if len(parts) >= 2 {
			switch parts[1] {
			case "series":
				return "/api/forecasts/:id/series"
			case "results":
				return "/api/forecasts/:id/results"
			}
		}

		return "/api/forecasts/:id"
	case strings.HasPrefix(path, "/api/alerts/"):
		rest := strings.TrimPrefix(path, "/api/alerts/")
		parts := strings.Split(rest, "/")
		if len(parts) >= 2 {
			switch parts[1] {
			case "test":
				return "/api/alerts/:id/test"
			case "history":
				return "/api/alerts/:id/history"
			}
		}

		return "/api/alerts/:id"
	case strings.HasPrefix(path, "/api/history/"):
		if strings.HasSuffix(path, "/ack") {
			return "/api/history/:id/ack"
		}

		return "/api/history/:id"
	default:
		return path
	}
}
