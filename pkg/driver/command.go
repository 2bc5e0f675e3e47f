package driver

import (
	"context"
	"strings"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// CommandDriver manages a target through arbitrary status/start/stop commands,
// typically a web-server worker pool. Restart is fire-and-forget: it returns as soon
// as the start command completes, with whatever text the command produced.
type CommandDriver struct {
	status CommandSpec
	start  CommandSpec
	stop   CommandSpec
	runner Runner
	logger logging.Logger
}

func NewCommandDriver(status, start, stop CommandSpec, runner Runner, logger logging.Logger) *CommandDriver {
	return &CommandDriver{
		status: status,
		start:  start,
		stop:   stop,
		runner: runner,
		logger: logger,
	}
}

func (d *CommandDriver) QueryStatus(ctx context.Context) (target.Status, error) {
	result, err := d.runner.Run(ctx, d.status)
	if err != nil {
		return target.StatusUnknown, errors.NewDriverUnavailableError("failed to query status", err).WithContext("command", d.status.String())
	}
	if result.ExitCode != 0 {
		return target.StatusUnknown, errors.NewDriverUnavailableError("status command failed: "+firstNonEmpty(result.Stderr, result.Stdout), nil).
			WithContext("command", d.status.String()).
			WithContext("exit_code", result.ExitCode)
	}
	return parseStatusOutput(result.Stdout), nil
}

// Restart ignores timeout; the start command is not followed by a confirmation wait.
func (d *CommandDriver) Restart(ctx context.Context, timeout time.Duration) (target.RestartResult, error) {
	result, err := d.runner.Run(ctx, d.start)
	restart := target.RestartResult{Output: result.Stdout, ErrorOutput: result.Stderr}
	if err != nil {
		return restart, errors.NewRestartFailedError("failed to run start command", err).WithContext("command", d.start.String())
	}
	if result.ExitCode != 0 || result.Stderr != "" {
		return restart, errors.NewRestartFailedError("start command reported an error: "+firstNonEmpty(result.Stderr, result.Stdout), nil).
			WithContext("command", d.start.String()).
			WithContext("exit_code", result.ExitCode)
	}
	return restart, nil
}

func (d *CommandDriver) Start(ctx context.Context) error {
	_, err := d.Restart(ctx, 0)
	return err
}

func (d *CommandDriver) Stop(ctx context.Context) error {
	if d.stop.Path == "" {
		return errors.NewUnsupportedError("no stop command configured", nil)
	}
	result, err := d.runner.Run(ctx, d.stop)
	if err != nil {
		return errors.NewDriverUnavailableError("failed to run stop command", err).WithContext("command", d.stop.String())
	}
	if result.ExitCode != 0 || result.Stderr != "" {
		return errors.NewRestartFailedError("stop command reported an error: "+firstNonEmpty(result.Stderr, result.Stdout), nil).
			WithContext("command", d.stop.String()).
			WithContext("exit_code", result.ExitCode)
	}
	return nil
}

// parseStatusOutput maps the last non-empty line of output to a status by keyword.
func parseStatusOutput(output string) target.Status {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	state := strings.ToLower(strings.TrimSpace(lines[len(lines)-1]))

	switch state {
	case "started", "running", "active":
		return target.StatusRunning
	case "stopped", "inactive":
		return target.StatusStopped
	case "stopping":
		return target.StatusStopping
	case "starting":
		return target.StatusStarting
	default:
		return target.StatusUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
