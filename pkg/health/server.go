package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
)

// Server exposes /healthz, /readyz, and /metrics while a deployment runs.
type Server struct {
	checker *Checker
	logger  logging.Logger
	http    *http.Server
}

// NewServer builds the monitor server on addr.
func NewServer(addr string, checker *Checker, registry *metrics.Registry, logger logging.Logger) *Server {
	s := &Server{
		checker: checker,
		logger:  logger.With(logging.Component("health")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("monitor listening", logging.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server stopped", logging.Error(err))
		}
	}()
}

// Shutdown drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.checker.Run(r.Context()), false)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.checker.RunReadiness(r.Context()), true)
}

// writeResponse maps the aggregate status to an HTTP code. Readiness is
// binary; the health endpoint reports degraded as 200 with detail.
func writeResponse(w http.ResponseWriter, response Response, binary bool) {
	w.Header().Set("Content-Type", "application/json")

	code := http.StatusOK
	switch {
	case response.Status == StatusUnhealthy:
		code = http.StatusServiceUnavailable
	case binary && response.Status != StatusHealthy:
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
