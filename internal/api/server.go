// Package api is the thin HTTP surface over the insight pipeline. It maps
// requests to service calls and typed errors to status codes; all behavior
// lives below it.
package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/common/observability"
	"commerce-insights/internal/insights/executor"
	"commerce-insights/internal/insights/reports"
	"commerce-insights/internal/models"
)

// QuestionService is the pipeline surface the API consumes.
type QuestionService interface {
	ProcessQuestion(ctx context.Context, storeID, question string) (*models.AIQueryResult, error)
}

// QueryRunner executes an already-validated statement.
type QueryRunner interface {
	Run(ctx context.Context, sqlText string, params []any) (*executor.QueryResult, error)
}

// HealthChecker reports readiness of one downstream dependency.
type HealthChecker func(ctx context.Context) error

// Server owns the mux and the handler dependencies.
type Server struct {
	pipeline QuestionService
	runner   QueryRunner
	reports  *reports.Service
	obs      *observability.Observability
	logger   logger.Logger
	checks   map[string]HealthChecker
}

func NewServer(pipeline QuestionService, runner QueryRunner, rep *reports.Service, obs *observability.Observability, log logger.Logger, checks map[string]HealthChecker) *Server {
	return &Server{
		pipeline: pipeline,
		runner:   runner,
		reports:  rep,
		obs:      obs,
		logger:   log,
		checks:   checks,
	}
}

// Handler builds the full route table, including the operational endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/insights/ask", s.instrument("ask", s.handleAsk))
	mux.HandleFunc("POST /api/v1/insights/answer", s.instrument("answer", s.handleAnswer))
	mux.HandleFunc("GET /api/v1/reports/{report}", s.instrument("report", s.handleReport))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)

	return mux
}

// instrument records per-route counters and latency around a handler.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(recorder, r)

		status := "success"
		if recorder.status >= 400 {
			status = "error"
		}
		if s.obs != nil {
			s.obs.RecordRequest(r.Context(), status)
			s.obs.RecordRequestDuration(r.Context(), time.Since(start), status)
		}
		s.logger.Info("request handled", map[string]interface{}{
			"route":       route,
			"status":      recorder.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady pings every registered dependency and reports 503 on the
// first failure.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WithError(err).Warn("readiness check failed", map[string]interface{}{
				"dependency": name,
			})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":     "not ready",
				"dependency": name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
