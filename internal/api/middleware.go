package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/domain"
	"ai-restaurant-analysis/internal/pipeline"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging tags every request with an id and logs method, path,
// status and latency.
func RequestLogging(log *logging.Logger) mux.MiddlewareFunc {
	l := log.WithComponent("http")
	reg := metrics.Default
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			reg.Counter("http_requests_total", "HTTP requests served").Inc()
			reg.Histogram("http_request_seconds", "HTTP request latency", nil).
				Observe(elapsed.Seconds())
			l.Info("request",
				logging.String("requestId", requestID),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rec.status),
				logging.Duration("elapsed", elapsed))
		})
	}
}

// Router assembles the service's routes.
func Router(engine *pipeline.Engine, repo domain.Repository, db Pinger, ai clova.Completer, pm *prompts.Manager, log *logging.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogging(log))

	r.HandleFunc("/api/analysis", AnalyzeHandler(engine, log)).Methods(http.MethodPost)
	r.HandleFunc("/api/validate", ValidateHandler(ai, pm, log)).Methods(http.MethodPost)
	r.HandleFunc("/api/pipeline-executions", ListExecutionsHandler(repo)).Methods(http.MethodGet)
	r.HandleFunc("/api/pipeline-executions/{analysisId}/jobs", JobExecutionsHandler(repo)).Methods(http.MethodGet)
	r.HandleFunc("/health", HealthHandler(db)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}
