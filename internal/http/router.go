// Package httpapi assembles the service router from the per-domain
// handlers. Handlers register their own routes; this package owns only the
// shared middleware chain and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canlaw/internal/platform/middleware"
	"canlaw/pkg/platform/httputil"
)

// Registrar is implemented by domain handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one backing dependency.
type HealthChecker func(ctx context.Context) error

// NewRouter builds the service router. Readiness fails when any configured
// backend is unreachable; liveness only proves the process serves.
func NewRouter(logger *slog.Logger, checks map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(req.Context()); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			logger.WarnContext(req.Context(), "readiness check failed", "failures", failures)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "unavailable",
				"failures": failures,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
