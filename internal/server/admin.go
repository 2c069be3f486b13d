package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/metrics"
)

// StatusReport is the body of GET /status.
type StatusReport struct {
	Addr           string                  `json:"addr"`
	Limit          string                  `json:"limit"`
	Algorithm      string                  `json:"algorithm"`
	ActiveSessions int                     `json:"active_sessions"`
	UptimeSeconds  float64                 `json:"uptime_seconds"`
	Runtime        metrics.RuntimeSnapshot `json:"runtime"`
}

// Status builds the current status report.
func (s *Server) Status() StatusReport {
	addr := ""
	if a := s.Addr(); a != nil {
		addr = a.String()
	}
	return StatusReport{
		Addr:           addr,
		Limit:          s.cfg.Limit.String(),
		Algorithm:      s.cfg.Calculator.Name(),
		ActiveSessions: s.ActiveSessions(),
		UptimeSeconds:  s.Uptime().Seconds(),
		Runtime:        metrics.NewSampler().Snapshot(),
	}
}

// AdminHandler returns the admin HTTP router: /metrics (when the server has
// metrics), /healthz and /status.
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	sec := DefaultSecurityConfig()

	if s.metrics != nil {
		r.Get("/metrics", SecurityMiddleware(sec, s.metricsMiddleware(s.handleMetrics)))
	}
	r.Get("/healthz", SecurityMiddleware(sec, s.metricsMiddleware(s.handleHealth)))
	r.Get("/status", SecurityMiddleware(sec, s.metricsMiddleware(s.handleStatus)))
	return r
}

func (s *Server) metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next(w, r)
			return
		}
		s.metrics.IncrementActiveRequests()
		defer s.metrics.DecrementActiveRequests()
		s.metrics.adminRequests.WithLabelValues(r.URL.Path).Inc()
		next(w, r)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.logger.Debug("admin method not allowed",
			logging.String("method", r.Method), logging.String("path", r.URL.Path))
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.metrics.WritePrometheus(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.Addr() == nil || s.isClosed() {
		http.Error(w, "not serving", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.logger.Error("encode status", err)
	}
}
