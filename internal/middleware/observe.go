package middleware

import (
	"net/http"
	"time"

	"storefront/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID tags every request with an id and a logger carrying it.
// A caller-supplied X-Request-ID is kept when it is short enough; the id is echoed back.
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			l := logger.With().Str("request_id", id).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

// Logging writes one access log line per request through the request logger.
// Server errors log at error level, client errors at warn.
func Logging() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, elapsed time.Duration) {
		status = statusOrOK(status)
		log := hlog.FromRequest(r)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", elapsed).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}

// Metrics records request counts and latencies per matched route pattern.
// It must wrap the ServeMux directly so the pattern the mux sets is visible here.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, _ int, elapsed time.Duration) {
		m.ObserveHTTP(r.Pattern, r.Method, statusOrOK(status), elapsed)
	})
}

// A handler that writes nothing leaves the status unset; net/http sends 200 for it.
func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
