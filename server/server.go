// Package server provides the HTTP API for DMARC policy resolution.
//
// Routes:
//
//	GET /v1/policy/{domain}  resolve the policy for domain
//	GET /healthz             liveness
//	GET /metrics             Prometheus metrics, if a collector is configured
//
// Every request is assigned a ULID query ID, returned in the X-Query-Id header
// and logged with the request.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/synqronlabs/dmarcpolicy/dns"
	"github.com/synqronlabs/dmarcpolicy/metrics"
	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
)

// RuleSource supplies the public suffix rules for each request.
// publicsuffix.Store implements it.
type RuleSource interface {
	Rules() *publicsuffix.RuleSet
}

// Config contains configuration options for the HTTP server.
type Config struct {
	Addr string

	// Resolver performs the TXT lookups.
	Resolver dns.Resolver

	// Rules supplies the public suffix list. Nil means only the implicit
	// "*" rule applies.
	Rules RuleSource

	// Metrics, if set, records outcomes and is served on /metrics.
	Metrics *metrics.Collector

	// LookupTimeout bounds the resolution of one domain.
	LookupTimeout time.Duration

	// ShutdownTimeout bounds the wait for in-flight requests when the
	// server's context is canceled.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8053",
		LookupTimeout:   10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logger:          slog.Default(),
	}
}

// Server is a chi router behind a net/http server.
type Server struct {
	config Config
	mux    *chi.Mux
	srv    *http.Server
}

// New creates a Server. Zero fields of config take the DefaultConfig values.
func New(config Config) *Server {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = def.LookupTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}

	s := &Server{config: config, mux: chi.NewRouter()}
	s.routes()
	s.srv = &http.Server{
		Addr:              config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(config.Logger.Handler(), slog.LevelError),
	}
	return s
}

func (s *Server) routes() {
	s.mux.Use(queryID)
	s.mux.Use(accessLog(s.config.Logger))
	s.mux.Use(middleware.Recoverer)

	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Route("/v1/policy", func(r chi.Router) {
		r.Get("/", s.handlePolicy)
		r.Get("/{domain}", s.handlePolicy)
	})
	if s.config.Metrics != nil {
		s.mux.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the configured listening address.
func (s *Server) Addr() string { return s.config.Addr }

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.config.Logger.Info("http listening", slog.String("addr", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() {
		errc <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.config.Logger.Info("http stopped")
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
