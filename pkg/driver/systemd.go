package driver

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

const defaultSystemctl = "systemctl"

// SystemdDriver manages a service target through systemctl.
// Restart blocks until the unit reports active or the caller's timeout expires.
type SystemdDriver struct {
	unit         string
	systemctl    string
	pollInterval time.Duration
	runner       Runner
	logger       logging.Logger
}

func NewSystemdDriver(unit, systemctl string, pollInterval time.Duration, runner Runner, logger logging.Logger) *SystemdDriver {
	if systemctl == "" {
		systemctl = defaultSystemctl
	}
	return &SystemdDriver{
		unit:         unit,
		systemctl:    systemctl,
		pollInterval: pollInterval,
		runner:       runner,
		logger:       logger,
	}
}

func (d *SystemdDriver) QueryStatus(ctx context.Context) (target.Status, error) {
	result, err := d.runner.Run(ctx, CommandSpec{
		Path: d.systemctl,
		Args: []string{"show", "--property=LoadState", "--property=ActiveState", d.unit},
	})
	if err != nil {
		return target.StatusUnknown, errors.NewDriverUnavailableError("failed to query unit", err).WithContext("unit", d.unit)
	}
	if result.ExitCode != 0 {
		return target.StatusUnknown, errors.NewDriverUnavailableError("systemctl show failed: "+result.Stderr, nil).
			WithContext("unit", d.unit).
			WithContext("exit_code", result.ExitCode)
	}

	properties := parseProperties(result.Stdout)
	if properties["LoadState"] == "not-found" {
		return target.StatusUnknown, errors.NewDriverUnavailableError("unit not found", nil).WithContext("unit", d.unit)
	}

	return parseActiveState(properties["ActiveState"]), nil
}

func (d *SystemdDriver) Restart(ctx context.Context, timeout time.Duration) (target.RestartResult, error) {
	if err := d.systemctlCommand(ctx, "start"); err != nil {
		return target.RestartResult{}, err
	}

	d.logger.Debugf("Waiting for unit to become active, unit: %s, timeout: %v", d.unit, timeout)

	if err := WaitForStatus(ctx, d.QueryStatus, target.StatusRunning, timeout, d.pollInterval); err != nil {
		return target.RestartResult{}, err
	}
	return target.RestartResult{Confirmed: true}, nil
}

func (d *SystemdDriver) Start(ctx context.Context) error {
	return d.systemctlCommand(ctx, "start")
}

func (d *SystemdDriver) Stop(ctx context.Context) error {
	return d.systemctlCommand(ctx, "stop")
}

func (d *SystemdDriver) systemctlCommand(ctx context.Context, verb string) error {
	result, err := d.runner.Run(ctx, CommandSpec{Path: d.systemctl, Args: []string{verb, d.unit}})
	if err != nil {
		if errors.IsTimeoutError(err) || errors.IsCancelledError(err) {
			return err
		}
		return errors.NewDriverUnavailableError("failed to run systemctl "+verb, err).WithContext("unit", d.unit)
	}
	if result.ExitCode != 0 {
		return errors.NewRestartFailedError("systemctl "+verb+" failed: "+result.Stderr, nil).
			WithContext("unit", d.unit).
			WithContext("exit_code", result.ExitCode)
	}
	return nil
}

func parseProperties(output string) map[string]string {
	properties := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if found {
			properties[key] = value
		}
	}
	return properties
}

func parseActiveState(state string) target.Status {
	switch state {
	case "active", "reloading":
		return target.StatusRunning
	case "inactive", "failed":
		return target.StatusStopped
	case "deactivating":
		return target.StatusStopping
	case "activating":
		return target.StatusStarting
	default:
		return target.StatusUnknown
	}
}
