package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/tradecraft/internal/api/handlers"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// Handlers groups the endpoint handlers the router mounts
type Handlers struct {
	Health      *handlers.HealthHandler
	Run         *handlers.RunHandler
	Audit       *handlers.AuditHandler
	Runs        *handlers.RunsHandler
	Performance *handlers.PerformanceHandler
}

// RouterOptions holds the optional router pieces
type RouterOptions struct {
	DataDir  string              // served under /data/ when set
	Gatherer prometheus.Gatherer // /metrics when set
	Metrics  *metrics.Recorder
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, opts RouterOptions, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Pipeline
	api.HandleFunc("/events", h.Run.Events).Methods("GET")
	api.HandleFunc("/run", h.Run.Run).Methods("POST")
	api.HandleFunc("/run/stream", h.Run.Stream).Methods("GET")

	// Credential slot
	api.HandleFunc("/credential", h.Run.GetCredential).Methods("GET")
	api.HandleFunc("/credential", h.Run.SetCredential).Methods("PUT")
	api.HandleFunc("/credential", h.Run.ClearCredential).Methods("DELETE")

	// Audit
	api.HandleFunc("/audit", h.Audit.Log).Methods("GET")
	api.HandleFunc("/stats", h.Audit.Stats).Methods("GET")

	// Performance
	api.HandleFunc("/performance", h.Performance.Summary).Methods("GET")
	api.HandleFunc("/sizer/policy", h.Performance.Policy).Methods("GET")

	// Published runs
	api.HandleFunc("/runs", h.Runs.List).Methods("GET")
	api.HandleFunc("/runs/{id}", h.Runs.Get).Methods("GET")

	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer)).Methods("GET")
	}
	if opts.DataDir != "" {
		r.PathPrefix("/data/").Handler(noCache(http.StripPrefix("/data/", http.FileServer(http.Dir(opts.DataDir)))))
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, opts.Metrics))
	r.Use(recoveryMiddleware(log))

	return r
}

// noCache keeps pollers from reading a stale result file
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status. It forwards Hijack so the
// WebSocket upgrade still works behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests and records request metrics
func loggingMiddleware(log *logger.Logger, rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			rec.HTTPRequest(route, r.Method, sw.status, time.Since(start))

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
