// Package api exposes the notification engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

type Server struct {
	engine    *notification.Engine
	jwtSecret []byte
	logger    *slog.Logger
	router    *mux.Router
	checks    []healthCheck
}

type healthCheck struct {
	name    string
	healthy func() bool
}

func NewServer(engine *notification.Engine, jwtSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, jwtSecret: []byte(jwtSecret), logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/health", s.health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Unsubscribe links are authorized by their signed token alone.
	r.HandleFunc("/api/v1/unsubscribe", s.unsubscribe).Methods("GET", "POST")

	user := r.PathPrefix("/api/v1").Subrouter()
	user.Use(s.requireUser)
	user.HandleFunc("/notifications", s.listNotifications).Methods("GET")
	user.HandleFunc("/preferences", s.getPreferences).Methods("GET")
	user.HandleFunc("/preferences", s.putPreferences).Methods("PUT")

	internal := r.PathPrefix("/internal/v1").Subrouter()
	internal.Use(s.requireService)
	internal.HandleFunc("/reconcile", s.reconcile).Methods("POST")

	return r
}

// AddHealthCheck makes /health report 503 while healthy returns false.
func (s *Server) AddHealthCheck(name string, healthy func() bool) {
	s.checks = append(s.checks, healthCheck{name: name, healthy: healthy})
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "notifications")
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", w.Header().Get("X-Request-ID"),
		)
	})
}
