package control

import (
	"context"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler domain.Contract, logger logging.Logger) {
	RegisterWatchdogServiceServer(grpcServerRegistrar, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	UnimplementedWatchdogServiceServer
	handler domain.Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) Status(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	statuses, err := h.handler.Status(ctx)
	if err != nil {
		h.logger.Errorf("Status server handler: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("Status server handler done")
	return h.reply(statusReply{Targets: statuses})
}

func (h *grpcServerHandler) TargetStatus(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var in targetRequest
	if err := fromStruct(request, &in); err != nil {
		return nil, toStatusError(err)
	}
	targetStatus, err := h.handler.TargetStatus(ctx, in.Target)
	if err != nil {
		h.logger.Debugf("TargetStatus server handler, target: %s, error: %v", in.Target, err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("TargetStatus server handler done, target: %s", in.Target)
	return h.reply(targetStatus)
}

func (h *grpcServerHandler) ProposeConfig(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var in proposeRequest
	if err := fromStruct(request, &in); err != nil {
		return nil, toStatusError(err)
	}
	version, err := h.handler.ProposeConfig(ctx, in.Target, in.Record)
	if err != nil {
		h.logger.Debugf("ProposeConfig server handler, target: %s, error: %v", in.Target, err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("ProposeConfig server handler done, target: %s, version: %d", in.Target, version)
	return h.reply(proposeReply{Version: version})
}

func (h *grpcServerHandler) StartTarget(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	return h.command(ctx, request, "StartTarget", h.handler.StartTarget)
}

func (h *grpcServerHandler) StopTarget(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	return h.command(ctx, request, "StopTarget", h.handler.StopTarget)
}

func (h *grpcServerHandler) command(ctx context.Context, request *structpb.Struct, name string, run func(context.Context, string) error) (*structpb.Struct, error) {
	var in targetRequest
	if err := fromStruct(request, &in); err != nil {
		return nil, toStatusError(err)
	}
	if err := run(ctx, in.Target); err != nil {
		h.logger.Errorf("%s server handler, target: %s, error: %v", name, in.Target, err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("%s server handler done, target: %s", name, in.Target)
	return &structpb.Struct{}, nil
}

func (h *grpcServerHandler) reply(v interface{}) (*structpb.Struct, error) {
	message, err := toStruct(v)
	if err != nil {
		h.logger.Errorf("Failed to encode reply: %v", err)
		return nil, toStatusError(err)
	}
	return message, nil
}
