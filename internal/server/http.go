package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"signup-verify/internal/logging"
	"signup-verify/internal/server/middleware"
)

// Server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

// RouteRegistrar mounts a handler's routes on the router.
type RouteRegistrar interface {
	Register(r *mux.Router)
}

// Deps holds what the HTTP router needs.
type Deps struct {
	// Routes are mounted in order. Nil entries are skipped.
	Routes []RouteRegistrar
	// Sessions resolves the signed-in account for each request. If nil, every request is anonymous.
	Sessions middleware.AccountIDReader
	// Log receives one line per request and recovered panics.
	Log logging.Logger
	// CORSOrigins enables CORS headers for these origins. Empty disables CORS.
	CORSOrigins []string
}

// NewRouter builds the HTTP handler chain:
//
//	otelhttp → recovery → CORS (optional) → mux (session, request log) → routes
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}

	r := mux.NewRouter()
	if deps.Sessions != nil {
		r.Use(middleware.Session(deps.Sessions))
	}
	r.Use(middleware.RequestLog(log, "/healthz"))
	for _, routes := range deps.Routes {
		if routes != nil {
			routes.Register(r)
		}
	}

	var h http.Handler = r
	if len(deps.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(deps.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
			handlers.AllowCredentials(),
		)(h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: log}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return otelhttp.NewHandler(h, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
}

// NewHTTPServer returns an *http.Server for addr with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// recoveryLogger adapts logging.Logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	log logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error(context.Background(), "panic recovered", "panic", fmt.Sprint(v...))
}
