// Package httpapi serves the local admin API: health, status, jobs and
// Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/store"
)

const (
	apiPrefix       = "/api/v1"
	shutdownTimeout = 10 * time.Second
)

// Service is the part of commands.Service the API exposes.
type Service interface {
	Status(ctx context.Context) (commands.Status, error)
	ListJobs(ctx context.Context) ([]store.Job, error)
	CreateSchedule(ctx context.Context, req commands.ScheduleRequest) (store.Job, error)
	CancelJob(ctx context.Context, id int64) error
}

// Server is the admin HTTP server.
type Server struct {
	addr    string
	handler *Handler
	router  *mux.Router
	logger  *logger.Logger

	srv *http.Server
	ln  net.Listener
}

// New builds the router. gatherer may be nil to omit /metrics.
func New(addr string, svc Service, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{svc: svc, logger: log}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(log))

	api := router.PathPrefix(apiPrefix).Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs", h.CreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id:[0-9]+}", h.CancelJob).Methods(http.MethodDelete)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return &Server{addr: addr, handler: h, router: router, logger: log}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin api stopped", err)
		}
	}()

	s.logger.Info("admin api listening", logger.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin api shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			log.DebugCtx(r.Context(), "request processed",
				logger.Field{Key: "method", Value: r.Method},
				logger.Field{Key: "path", Value: r.URL.Path},
				logger.Field{Key: "status", Value: rw.status},
				logger.Field{Key: "duration", Value: time.Since(start).String()},
				logger.Field{Key: "remote_ip", Value: r.RemoteAddr})
		})
	}
}
