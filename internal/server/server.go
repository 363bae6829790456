// Package server exposes the command surface as a loopback HTTP API for the
// UI shell.
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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-overlay/internal/app"
)

const (
	defaultTimeout  = 90 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	Router *chi.Mux
	Addr   string
	app    *app.App
	logger *slog.Logger
	token  string
}

// Option configures the server.
type Option func(*options)

type options struct {
	timeout time.Duration
	token   string
}

// WithToken requires TokenHeader on every /v1 command.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithTimeout bounds each command. It should exceed the gateway timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func New(addr string, a *app.App, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(OriginMiddleware)
	r.Use(TimeoutMiddleware(o.timeout))
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "overlayd")
	})

	s := &Server{
		Router: r,
		Addr:   addr,
		app:    a,
		logger: logger,
		token:  o.token,
	}
	s.routes()
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting command API", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("stopping command API")
		return srv.Shutdown(shutdownCtx)
	}
}
