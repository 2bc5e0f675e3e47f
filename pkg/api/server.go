// Package api serves the HTTP control API: target status, configuration
// proposals, manual start/stop and the Prometheus scrape endpoint.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const DefaultShutdownTimeout = 25 * time.Second

type ServerOptions struct {
	Address         string
	ShutdownTimeout time.Duration
}

// NewRouter builds the route tree. metricsHandler may be nil.
func NewRouter(contract domain.Contract, metricsHandler http.Handler, logger logging.Logger) http.Handler {
	h := &handlers{
		contract: contract,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1/targets", func(r chi.Router) {
		r.Get("/", h.listTargets)
		r.Route("/{kind}/{name}", func(r chi.Router) {
			r.Get("/", h.getTarget)
			r.Put("/config", h.putConfig)
			r.Post("/start", h.startTarget)
			r.Post("/stop", h.stopTarget)
		})
	})

	return r
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debugf("HTTP %s %s, status: %d, duration: %v, request_id: %s",
				r.Method, r.URL.Path, ww.Status(), time.Since(start), chimiddleware.GetReqID(r.Context()))
		})
	}
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	options  ServerOptions
	handler  http.Handler
	address  string
	listener net.Listener
	logger   logging.Logger
}

func NewServer(options ServerOptions, handler http.Handler, logger logging.Logger) (*Server, error) {
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}

	listener, err := net.Listen("tcp", options.Address)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to listen at %s", options.Address), err)
	}

	logger.Infof("HTTP API listening at %s", listener.Addr().String())

	return &Server{
		options:  options,
		handler:  handler,
		address:  listener.Addr().String(),
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr is the resolved listen address.
func (s *Server) Addr() string {
	return s.address
}

// Serve blocks until ctx is done or the listener fails. A failed Serve may be
// called again; it listens anew on the resolved address.
func (s *Server) Serve(ctx context.Context) error {
	listener := s.listener
	s.listener = nil
	if listener == nil {
		var err error
		if listener, err = net.Listen("tcp", s.address); err != nil {
			return errors.NewIOError(fmt.Sprintf("failed to listen at %s", s.address), err)
		}
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.NewIOError("HTTP server failed", err)
	case <-ctx.Done():
	}

	s.logger.Infof("Stopping HTTP API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnf("HTTP API shutdown timed out, closing, error: %v", err)
		server.Close()
	}
	<-serveErr
	s.logger.Infof("HTTP API stopped")
	return ctx.Err()
}

// Close releases a listener that was never served.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

func (s *Server) String() string {
	return "http-api"
}
