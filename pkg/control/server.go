package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const DefaultShutdownTimeout = 25 * time.Second

type ServerOptions struct {
	Port            int
	ShutdownTimeout time.Duration
}

type Server interface {
	GRPC() grpc.ServiceRegistrar
	Addr() string
	// Serve blocks until ctx is done, then stops gracefully within the shutdown timeout.
	Serve(ctx context.Context) error
}

func NewServer(options ServerOptions, logger logging.Logger) (Server, error) {
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", options.Port))
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to listen at port %d", options.Port), err)
	}

	logger.Infof("gRPC control listening at %s", listener.Addr().String())

	return newServer(options, listener, logger), nil
}

func newServer(options ServerOptions, listener net.Listener, logger logging.Logger) *server {
	grpcServer := grpc.NewServer(
		grpc.WriteBufferSize(1*1024*1024),
		grpc.InitialWindowSize(1*1024*1024),
		grpc.InitialConnWindowSize(1*1024*1024),
	)
	reflection.Register(grpcServer)

	return &server{
		options:    options,
		grpcServer: grpcServer,
		listener:   listener,
		logger:     logger,
	}
}

type server struct {
	options    ServerOptions
	grpcServer *grpc.Server
	listener   net.Listener
	logger     logging.Logger
}

func (s *server) GRPC() grpc.ServiceRegistrar {
	return s.grpcServer
}

func (s *server) Addr() string {
	return s.listener.Addr().String()
}

func (s *server) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			s.logger.Errorf("gRPC server Serve failed: %v", err)
			return errors.NewIOError("gRPC server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Stopping gRPC server...")
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Infof("gRPC server stopped gracefully")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Infof("Shutdown timed out, forcing gRPC server to stop")
		s.grpcServer.Stop()
	}
	<-serveErr
	return ctx.Err()
}

func (s *server) String() string {
	return "grpc-control"
}
