package control

import (
	"context"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) domain.Contract {
	grpcClient := NewWatchdogServiceClient(grpcClientConnection)
	return &grpcClientGateway{
		grpcClient: grpcClient,
		logger:     logger,
	}
}

type grpcClientGateway struct {
	grpcClient WatchdogServiceClient
	logger     logging.Logger
}

func (gw *grpcClientGateway) Status(ctx context.Context) ([]domain.TargetStatus, error) {
	response, err := gw.grpcClient.Status(ctx, &structpb.Struct{})
	if err != nil {
		gw.logger.Errorf("Status client gateway: %v", err)
		return nil, fromStatusError(err)
	}

	var reply statusReply
	if err := fromStruct(response, &reply); err != nil {
		return nil, err
	}
	gw.logger.Debugf("Status client gateway done, targets: %d", len(reply.Targets))
	return reply.Targets, nil
}

func (gw *grpcClientGateway) TargetStatus(ctx context.Context, id string) (domain.TargetStatus, error) {
	response, err := gw.call(ctx, gw.grpcClient.TargetStatus, targetRequest{Target: id})
	if err != nil {
		gw.logger.Debugf("TargetStatus client gateway, target: %s, error: %v", id, err)
		return domain.TargetStatus{}, err
	}

	var status domain.TargetStatus
	if err := fromStruct(response, &status); err != nil {
		return domain.TargetStatus{}, err
	}
	gw.logger.Debugf("TargetStatus client gateway done, target: %s", id)
	return status, nil
}

func (gw *grpcClientGateway) ProposeConfig(ctx context.Context, id string, record domain.ConfigRecord) (uint64, error) {
	response, err := gw.call(ctx, gw.grpcClient.ProposeConfig, proposeRequest{Target: id, Record: record})
	if err != nil {
		gw.logger.Debugf("ProposeConfig client gateway, target: %s, error: %v", id, err)
		return 0, err
	}

	var reply proposeReply
	if err := fromStruct(response, &reply); err != nil {
		return 0, err
	}
	gw.logger.Debugf("ProposeConfig client gateway done, target: %s, version: %d", id, reply.Version)
	return reply.Version, nil
}

func (gw *grpcClientGateway) StartTarget(ctx context.Context, id string) error {
	_, err := gw.call(ctx, gw.grpcClient.StartTarget, targetRequest{Target: id})
	if err != nil {
		gw.logger.Errorf("StartTarget client gateway, target: %s, error: %v", id, err)
		return err
	}
	gw.logger.Debugf("StartTarget client gateway done, target: %s", id)
	return nil
}

func (gw *grpcClientGateway) StopTarget(ctx context.Context, id string) error {
	_, err := gw.call(ctx, gw.grpcClient.StopTarget, targetRequest{Target: id})
	if err != nil {
		gw.logger.Errorf("StopTarget client gateway, target: %s, error: %v", id, err)
		return err
	}
	gw.logger.Debugf("StopTarget client gateway done, target: %s", id)
	return nil
}

type clientMethod func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

func (gw *grpcClientGateway) call(ctx context.Context, method clientMethod, request interface{}) (*structpb.Struct, error) {
	message, err := toStruct(request)
	if err != nil {
		return nil, err
	}
	response, err := method(ctx, message)
	if err != nil {
		return nil, fromStatusError(err)
	}
	return response, nil
}
