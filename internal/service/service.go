// Package service is the HTTP transport for the interchange engine. It
// is a thin layer: handlers decode requests, delegate to the engine,
// and translate sentinel errors to status codes. Documents travel
// base64-encoded inside JSON envelopes.
package service

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loanglide/mismo"
)

// Service wires the engine to HTTP routes.
type Service struct {
	engine  *mismo.Engine
	logger  *slog.Logger
	metrics *Metrics
}

// New builds a service around an engine.
func New(engine *mismo.Engine, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger, metrics: metrics}
}

// Router builds the HTTP router. The gatherer serves /metrics; pass the
// registry the service metrics were registered on.
func (s *Service) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/validate", s.handleValidate)
		r.Post("/import", s.handleImport)
		r.Post("/extension", s.handleExtension)
		r.Post("/regression", s.handleRegression)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"packs":  s.engine.Packs(),
	})
}
