package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"signup-verify/internal/logging"
)

// RequestLog logs one line per request with status, size, and latency.
// Paths in quiet (e.g. /healthz) are logged at debug level.
func RequestLog(log logging.Logger, quiet ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			r = r.WithContext(WithClientIP(r.Context(), ip))
			m := httpsnoop.CaptureMetrics(next, w, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routeTemplate(r),
				"status", m.Code,
				"bytes", m.Written,
				"duration_ms", m.Duration.Milliseconds(),
				"client_ip", ip,
			}
			if id, ok := GetAccountID(r.Context()); ok {
				args = append(args, "account_id", id)
			}
			switch {
			case m.Code >= http.StatusInternalServerError:
				log.Error(r.Context(), "http request", args...)
			case skip[r.URL.Path]:
				log.Debug(r.Context(), "http request", args...)
			default:
				log.Info(r.Context(), "http request", args...)
			}
		})
	}
}

// ClientIP returns the client address from X-Forwarded-For, X-Real-IP, or RemoteAddr.
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return ""
}
