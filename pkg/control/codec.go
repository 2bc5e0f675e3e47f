package control

import (
	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct documents carry the JSON form of the domain types.

type targetRequest struct {
	Target string `json:"target"`
}

type proposeRequest struct {
	Target string              `json:"target"`
	Record domain.ConfigRecord `json:"record"`
}

type proposeReply struct {
	Version uint64 `json:"version"`
}

type statusReply struct {
	Targets []domain.TargetStatus `json:"targets"`
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode message", err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.NewInternalError("failed to encode message", err)
	}
	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode message", err)
	}
	return message, nil
}

func fromStruct(message *structpb.Struct, v interface{}) error {
	data, err := json.Marshal(message.AsMap())
	if err != nil {
		return errors.NewValidationError("failed to decode message", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewValidationError("failed to decode message", err)
	}
	return nil
}
