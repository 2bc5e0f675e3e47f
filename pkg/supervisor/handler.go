package supervisor

import (
	"context"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// NewHandler exposes the supervisor through the shared control contract.
func NewHandler(supervisor *Supervisor, logger logging.Logger) domain.Contract {
	return &handler{
		supervisor: supervisor,
		logger:     logger,
	}
}

type handler struct {
	supervisor *Supervisor
	logger     logging.Logger
}

func (h *handler) Status(ctx context.Context) ([]domain.TargetStatus, error) {
	infos := h.supervisor.Targets()
	result := make([]domain.TargetStatus, 0, len(infos))
	for _, info := range infos {
		result = append(result, ToTargetStatus(info))
	}
	h.logger.Debugf("Status handler done, targets: %d", len(result))
	return result, nil
}

func (h *handler) TargetStatus(ctx context.Context, id string) (domain.TargetStatus, error) {
	targetID, err := parseTargetID(id)
	if err != nil {
		return domain.TargetStatus{}, err
	}
	info, err := h.supervisor.Target(targetID)
	if err != nil {
		return domain.TargetStatus{}, err
	}
	return ToTargetStatus(info), nil
}

func (h *handler) ProposeConfig(ctx context.Context, id string, record domain.ConfigRecord) (uint64, error) {
	targetID, err := parseTargetID(id)
	if err != nil {
		return 0, err
	}
	config, err := FromConfigRecord(record)
	if err != nil {
		return 0, errors.NewInvalidConfigError("invalid configuration record", err).WithContext("target", id)
	}
	return h.supervisor.Propose(targetID, config)
}

func (h *handler) StartTarget(ctx context.Context, id string) error {
	targetID, err := parseTargetID(id)
	if err != nil {
		return err
	}
	return h.supervisor.StartTarget(ctx, targetID)
}

func (h *handler) StopTarget(ctx context.Context, id string) error {
	targetID, err := parseTargetID(id)
	if err != nil {
		return err
	}
	return h.supervisor.StopTarget(ctx, targetID)
}

func parseTargetID(id string) (target.ID, error) {
	targetID, err := target.ParseID(id)
	if err != nil {
		return target.ID{}, errors.NewUnknownTargetError("invalid target identity", err).WithContext("target", id)
	}
	return targetID, nil
}

// FromConfigRecord converts a submission record into a stored configuration value.
func FromConfigRecord(record domain.ConfigRecord) (configstore.TargetConfig, error) {
	kind, err := target.ParseKind(record.TargetKind)
	if err != nil {
		return configstore.TargetConfig{}, err
	}
	level, err := logging.ParseLevel(record.LogLevel)
	if err != nil {
		return configstore.TargetConfig{}, err
	}

	config := configstore.TargetConfig{Kind: kind, LogLevel: level}
	if record.PollIntervalSeconds != nil {
		config = config.WithInterval(*record.PollIntervalSeconds)
	}
	return config, nil
}

func ToTargetStatus(info TargetInfo) domain.TargetStatus {
	status := domain.TargetStatus{
		Target:   info.Target.String(),
		Kind:     string(info.Target.Kind),
		LogLevel: info.Config.LogLevel.String(),
		Version:  info.Version,
	}
	if info.Config.PollIntervalSeconds != nil {
		seconds := *info.Config.PollIntervalSeconds
		status.PollIntervalSeconds = &seconds
	}

	if info.State != nil {
		status.Phase = string(info.State.Phase)
		status.LastStatus = string(info.State.LastStatus)
		status.LastAction = string(info.State.LastAction)
		status.LastError = info.State.LastError
		status.Restarts = info.State.Restarts
		if !info.State.LastCheck.IsZero() {
			lastCheck := info.State.LastCheck
			status.LastCheck = &lastCheck
		}
	}
	return status
}
