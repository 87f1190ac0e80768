package handler

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the API and the health probes. API requests get the
// given timeout; m and checker may be nil.
func NewRouter(h *Handler, m *metrics.Metrics, checker *health.Checker, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.QueryID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(m))

	if checker != nil {
		r.Get("/health/live", checker.LiveHandler())
		r.Get("/health/ready", checker.ReadyHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Trace)
		r.Use(middleware.Timeout(timeout))
		r.Get("/search", h.Search)
		r.Get("/count", h.Count)
		r.Post("/federated", h.Federated)
		r.Get("/parts", h.Parts)
		r.Get("/stats", h.Stats)
		r.Get("/analytics", h.Analytics)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/invalidate", h.CacheInvalidate)
	})
	return r
}
