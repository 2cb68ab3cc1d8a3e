// Package statusapi exposes the advisor's operator-facing introspection
// endpoints: health, active recommendations, active filters, and a
// manual filter-clear action.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/telemetryadvisor/advisor/internal/parser"
)

// Source supplies the live state the status API reports. The processor
// package implements this.
type Source interface {
	ActiveRecommendations() []parser.Recommendation
	ActiveFilters() []parser.FilterRule
	ClearFilters()
}

// Server wraps a chi router serving the advisor's status endpoints.
type Server struct {
	router *chi.Mux
	http   *http.Server
	logger *zap.SugaredLogger
}

// New builds a Server bound to addr. If metricsEnabled, /metrics serves
// every metric registered against registry — the same registry passed
// to obsmetrics.New — rather than the global default registry, so the
// processor's own counters and gauges are actually scrapeable.
func New(addr string, source Source, metricsEnabled bool, registry *prometheus.Registry, logger *zap.SugaredLogger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", handleHealthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/recommendations", handleRecommendations(source))
		v1.Get("/filters", handleFilters(source))
		v1.Post("/filters/clear", handleClearFilters(source))
	})

	if metricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		router: r,
		http:   &http.Server{Addr: addr, Handler: r},
		logger: logger,
	}
}

// Start begins serving in the background. Callers should check the
// returned error channel for a non-nil listen error.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleRecommendations(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"recommendations": source.ActiveRecommendations(),
		})
	}
}

func handleFilters(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"filters": source.ActiveFilters(),
		})
	}
}

func handleClearFilters(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source.ClearFilters()
		respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
