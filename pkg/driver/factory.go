package driver

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

type Type string

const (
	TypeSystemd Type = "systemd"
	TypeCommand Type = "command"
)

// Config selects and parameterizes the driver of one target.
type Config struct {
	Type Type `yaml:"type,omitempty"`

	// systemd
	Unit         string        `yaml:"unit,omitempty"`
	Systemctl    string        `yaml:"systemctl,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// command; arguments may contain the {name} placeholder
	Status *CommandSpec `yaml:"status,omitempty"`
	Start  *CommandSpec `yaml:"start,omitempty"`
	Stop   *CommandSpec `yaml:"stop,omitempty"`
}

// Default pool commands drive an IIS application pool through PowerShell.
func defaultPoolCommands() (status, start, stop CommandSpec) {
	powershell := func(script string) CommandSpec {
		return CommandSpec{
			Path: "powershell.exe",
			Args: []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-Command",
				"Import-Module WebAdministration; " + script},
		}
	}
	status = powershell("(Get-WebAppPoolState -Name '{name}').Value")
	start = powershell("Start-WebAppPool -Name '{name}'; Write-Output 'App Pool {name} restarted successfully.'")
	stop = powershell("Stop-WebAppPool -Name '{name}'")
	return
}

// DefaultType is systemd for services and command for pools.
func DefaultType(kind target.Kind) Type {
	if kind == target.KindPool {
		return TypeCommand
	}
	return TypeSystemd
}

func ValidateConfig(kind target.Kind, config Config) error {
	if !kind.Monitored() {
		return errors.NewUnsupportedError(fmt.Sprintf("targets of kind %s have no driver", kind), nil)
	}

	driverType := config.Type
	if driverType == "" {
		driverType = DefaultType(kind)
	}

	switch driverType {
	case TypeSystemd:
		if config.Status != nil || config.Start != nil || config.Stop != nil {
			return errors.NewValidationError("systemd driver does not accept status/start/stop commands", nil)
		}
	case TypeCommand:
		if config.Unit != "" || config.Systemctl != "" {
			return errors.NewValidationError("command driver does not accept unit or systemctl", nil)
		}
		for _, spec := range []*CommandSpec{config.Status, config.Start, config.Stop} {
			if spec != nil && spec.Path == "" {
				return errors.NewValidationError("command path cannot be empty", nil)
			}
		}
	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported driver type: %s", driverType), nil)
	}

	if config.PollInterval < 0 {
		return errors.NewValidationError("driver poll interval cannot be negative", nil)
	}
	return nil
}

// New builds the driver for a monitored target. The target name doubles as the unit
// name or {name} substitution when the configuration does not override it.
func New(id target.ID, config Config, runner Runner, logger logging.Logger) (target.Driver, error) {
	if err := ValidateConfig(id.Kind, config); err != nil {
		return nil, err.(*errors.DomainError).WithContext("target", id.String())
	}

	driverType := config.Type
	if driverType == "" {
		driverType = DefaultType(id.Kind)
	}

	switch driverType {
	case TypeSystemd:
		unit := config.Unit
		if unit == "" {
			unit = id.Name
		}
		return NewSystemdDriver(unit, config.Systemctl, config.PollInterval, runner, logger), nil

	default:
		status, start, stop := defaultPoolCommands()
		if config.Status != nil {
			status = *config.Status
		}
		if config.Start != nil {
			start = *config.Start
		}
		if config.Stop != nil {
			stop = *config.Stop
		}
		return NewCommandDriver(
			status.withName(id.Name),
			start.withName(id.Name),
			stop.withName(id.Name),
			runner,
			logger,
		), nil
	}
}
