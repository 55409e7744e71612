package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/config"
	"github.com/hongminglow/dunes-blog/internal/http/handlers"
	"github.com/hongminglow/dunes-blog/internal/metrics"
	"github.com/hongminglow/dunes-blog/internal/middleware"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

const metricsNamespace = "dunes"

// Deps are the resources the server uses but does not own.
type Deps struct {
	Store       storage.UserStore
	Revocations auth.RevocationList
	Logger      *zap.Logger
	// Registry receives the server's collectors. A fresh registry with Go
	// runtime and process collectors is used when nil.
	Registry *prometheus.Registry
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner   *http.Server
	gate    *auth.Gate
	handler http.Handler
	logger  *zap.Logger
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	codec, err := auth.NewCodec([]byte(cfg.SessionSecret), auth.WithMaxAge(cfg.SessionMaxAge))
	if err != nil {
		return nil, err
	}
	cookies := auth.DefaultCookieSettings(cfg.SecureCookies())
	cookies.MaxAge = cfg.SessionMaxAge

	gateOpts := []auth.GateOption{
		auth.WithLogger(logger.Named("auth")),
		auth.WithMetrics(metrics.NewAuth(reg, metricsNamespace)),
		auth.WithStaleCheck(cfg.SessionStaleCheck),
	}
	if deps.Revocations != nil {
		gateOpts = append(gateOpts, auth.WithRevocations(deps.Revocations))
	}
	gate := auth.NewGate(deps.Store, codec, cookies, gateOpts...)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(gate, logger.Named("http")).Register(mux)
	handlers.NewAdminHandler(gate, logger.Named("http")).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	var handler http.Handler = mux
	handler = middleware.RequireAdmin(gate, middleware.AdminOptions{Logger: logger.Named("admin")}, handler)
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	handler = middleware.Metrics(metrics.NewHTTP(reg, metricsNamespace), handler)
	handler = middleware.Logging(logger.Named("http"), handler)
	handler = middleware.RequestID(handler)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, gate: gate, handler: handler, logger: logger}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown stops accepting requests, drains in-flight ones and waits for
// background last-login updates.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.inner.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.gate.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown: background updates still running")
	}
	return err
}
