package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/toption/optionscan/internal/interfaces/http/handlers"
	"github.com/toption/optionscan/internal/telemetry"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns defaults suitable for running behind a local
// reverse proxy.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:        "0.0.0.0",
		Port:        8080,
		ReadTimeout: 10 * time.Second,
		// Scan-triggering endpoints run a full batch inline; the write
		// timeout must cover the scan budget, not just serialization.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the JSON API server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *handlers.Handlers
	metrics  *telemetry.Metrics
	config   ServerConfig
}

// NewServer builds the router and wires middleware and routes.
func NewServer(config ServerConfig, h *handlers.Handlers, metrics *telemetry.Metrics) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:   router,
		handlers: h,
		metrics:  metrics,
		config:   config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc("/opportunities", s.handlers.Opportunities).Methods("GET")
	s.router.HandleFunc("/market-scan", s.handlers.MarketScan).Methods("GET")

	s.router.HandleFunc("/cron/batch-scan", s.handlers.CronBatchScan).Methods("POST")
	s.router.HandleFunc("/cron/cache-warmup", s.handlers.CronCacheWarmup).Methods("POST")

	s.router.HandleFunc("/cache/status", s.handlers.CacheStatus).Methods("GET")
	s.router.HandleFunc("/cache/refresh", s.handlers.CacheRefresh).Methods("POST")

	s.router.HandleFunc("/scans/recent", s.handlers.RecentScans).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		requestID, _ := r.Context().Value(requestIDKey).(string)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")

		if s.metrics != nil {
			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			s.metrics.HTTPDuration.
				WithLabelValues(route, strconv.Itoa(wrapper.statusCode)).
				Observe(duration.Seconds())
		}
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWrapper captures the response status for logging and metrics.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
