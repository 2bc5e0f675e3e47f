package domain

import (
	"context"
	"time"
)

// ConfigRecord is a configuration change submission. Acceptance is all-or-nothing.
type ConfigRecord struct {
	TargetKind          string `json:"target_kind" validate:"required,target_kind"`
	LogLevel            string `json:"log_level" validate:"required,log_level"`
	PollIntervalSeconds *int   `json:"poll_interval_seconds,omitempty"`
}

// TargetStatus reports the stored configuration of a target and, for monitored
// targets, the state of its monitor.
type TargetStatus struct {
	Target              string `json:"target"`
	Kind                string `json:"kind"`
	LogLevel            string `json:"log_level"`
	PollIntervalSeconds *int   `json:"poll_interval_seconds,omitempty"`
	Version             uint64 `json:"version"`

	Phase      string     `json:"phase,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastAction string     `json:"last_action,omitempty"`
	LastCheck  *time.Time `json:"last_check,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Restarts   int        `json:"restarts,omitempty"`
}

// Contract is the control surface shared by the HTTP API, the gRPC service and its client.
// Targets are addressed by their "<kind>/<name>" identity.
type Contract interface {
	Status(ctx context.Context) ([]TargetStatus, error)
	TargetStatus(ctx context.Context, id string) (TargetStatus, error)
	ProposeConfig(ctx context.Context, id string, record ConfigRecord) (uint64, error)
	StartTarget(ctx context.Context, id string) error
	StopTarget(ctx context.Context, id string) error
}
