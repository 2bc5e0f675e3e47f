package control

import (
	"fmt"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type ConnectionOptions struct {
	// Address overrides Port when set, e.g. "localhost:50055".
	Address string
	Port    int
}

type Connection interface {
	GRPC() grpc.ClientConnInterface
	Shutdown()
}

func NewConnection(options ConnectionOptions, logger logging.Logger, extraOptions ...grpc.DialOption) (Connection, error) {
	address := options.Address
	if address == "" {
		if options.Port == 0 {
			return nil, errors.NewValidationError("either address or port is required", nil)
		}
		address = fmt.Sprintf("127.0.0.1:%d", options.Port)
	}

	logger.Debugf("Dialing watchdog at %s", address)

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithReadBufferSize(1 * 1024 * 1024),
		grpc.WithInitialWindowSize(1 * 1024 * 1024),
		grpc.WithInitialConnWindowSize(1 * 1024 * 1024),
	}
	dialOpts = append(dialOpts, extraOptions...)

	grpcClientConnection, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to connect to %s", address), err)
	}

	logger.Debugf("Connected to watchdog at %s", address)

	return &connection{
		grpcClientConnection: grpcClientConnection,
		logger:               logger,
	}, nil
}

type connection struct {
	grpcClientConnection *grpc.ClientConn
	logger               logging.Logger
}

func (c *connection) GRPC() grpc.ClientConnInterface {
	return c.grpcClientConnection
}

func (c *connection) Shutdown() {
	c.logger.Debugf("Stopping gRPC client connection...")
	c.grpcClientConnection.Close()
	c.logger.Debugf("gRPC client connection stopped")
}
