package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"petagenda/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Checks groups readiness checks. A failing Required check makes the process
// unready; a failing Optional check only marks it degraded.
type Checks struct {
	Required map[string]Check
	Optional map[string]Check
}

// HTTPServer exposes liveness, readiness and Prometheus metrics next to the bot.
type HTTPServer struct {
	server *http.Server
	checks Checks
	logger *zerolog.Logger
}

// NewHTTPServer builds the operational server. A nil gatherer disables /metrics.
func NewHTTPServer(port int, checks Checks, gatherer prometheus.Gatherer, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	srv := &HTTPServer{checks: checks, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("operational HTTP listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("healthz")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("readyz")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.checks.Required)+len(s.checks.Optional))
	requiredOK := s.runChecks(ctx, s.checks.Required, results)
	optionalOK := s.runChecks(ctx, s.checks.Optional, results)

	switch {
	case !requiredOK:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": results})
	case !optionalOK:
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "checks": results})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
	}
}

func (s *HTTPServer) runChecks(ctx context.Context, checks map[string]Check, results map[string]string) bool {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return healthy
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
