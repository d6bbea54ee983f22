package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yndnr/webhost-go/internal/server/admission"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Logger for request logging.
	Logger *slog.Logger

	// Recorder receives request metrics. May be nil.
	Recorder Recorder

	// Metrics serves the Prometheus endpoint. May be nil.
	Metrics http.Handler

	// MetricsPath is where Metrics is mounted. Empty disables the endpoint.
	MetricsPath string

	// Policies are the admission policies. May be nil.
	Policies *admission.Policies

	// HSTS enables Strict-Transport-Security on TLS responses.
	HSTS bool

	// HSTSMaxAge overrides DefaultHSTSMaxAge when > 0.
	HSTSMaxAge time.Duration

	// WriteTimeout is the write budget granted to a request once the rate
	// limiter admits it. It should match the server's write timeout;
	// 0 selects WriteTimeout.
	WriteTimeout time.Duration

	// StaticRoot is served for unmatched GET and HEAD requests. Empty disables it.
	StaticRoot string
}

// Middlewares returns the request pipeline in execution order.
func (cfg *RouterConfig) Middlewares() []Middleware {
	chain := []Middleware{
		ContextLogger(cfg.Logger),
		Recover(),
		RequestID(),
		Audit(cfg.Recorder),
	}

	p := cfg.Policies
	if p != nil && p.Hosts != nil {
		chain = append(chain, p.Hosts.Middleware)
	}
	if cfg.HSTS {
		maxAge := cfg.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = DefaultHSTSMaxAge
		}
		chain = append(chain, HSTS(maxAge))
	}
	if p != nil && p.CORS != nil {
		chain = append(chain, p.CORS.Middleware)
	}
	if p != nil && p.RateLimit != nil {
		writeTimeout := cfg.WriteTimeout
		if writeTimeout <= 0 {
			writeTimeout = WriteTimeout
		}
		// Queued requests may wait several windows before they are admitted.
		chain = append(chain, p.RateLimit.Middleware, RefreshWriteDeadline(writeTimeout))
	}
	return chain
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	r := chi.NewRouter()

	for _, mw := range cfg.Middlewares() {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", health)

	if cfg.MetricsPath != "" && cfg.Metrics != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}

	if cfg.StaticRoot != "" {
		files := http.FileServer(http.Dir(cfg.StaticRoot))
		r.Method(http.MethodGet, "/*", files)
		r.Method(http.MethodHead, "/*", files)
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
