package watchdog

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/driver"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/supervisor"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"gopkg.in/yaml.v3"
)

const (
	DefaultControlTargetName = "watchdog"
	DefaultGRPCPort          = 50055
	DefaultHTTPAddress       = "127.0.0.1:8080"

	// The default shutdown timeout is the restart timeout plus shutdownMargin.
	shutdownMargin         = 30 * time.Second
	DefaultShutdownTimeout = monitor.DefaultRestartTimeout + shutdownMargin
)

// Config represents the top-level configuration file structure
type Config struct {
	Watchdog WatchdogOptions    `yaml:"watchdog"`
	Targets  []TargetDefinition `yaml:"targets"`
}

// WatchdogOptions represents process-level configuration
type WatchdogOptions struct {
	Log  logging.ZapConfig `yaml:"log"`
	HTTP HTTPOptions       `yaml:"http"`
	GRPC GRPCOptions       `yaml:"grpc"`

	IdlePeriod      time.Duration `yaml:"idle_period,omitempty"`
	RestartTimeout  time.Duration `yaml:"restart_timeout,omitempty"`
	CommandTimeout  time.Duration `yaml:"command_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// WatchConfig turns file edits into configuration proposals.
	WatchConfig *bool `yaml:"watch_config,omitempty"`
}

type HTTPOptions struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Address string `yaml:"address,omitempty"`
}

type GRPCOptions struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	Port    int   `yaml:"port,omitempty"`
}

// TargetDefinition declares one target and its initial configuration.
type TargetDefinition struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	LogLevel string `yaml:"log_level,omitempty"`

	// PollIntervalSeconds defaults to 10 for service and pool targets.
	PollIntervalSeconds *int `yaml:"poll_interval_seconds,omitempty"`
	// AutoMonitor false registers the target without a poll interval.
	AutoMonitor *bool `yaml:"auto_monitor,omitempty"`

	Driver *driver.Config `yaml:"driver,omitempty"`
}

// ID parses the declared kind and name. Call after ValidateConfig.
func (d TargetDefinition) ID() (target.ID, error) {
	kind, err := target.ParseKind(d.Kind)
	if err != nil {
		return target.ID{}, err
	}
	if err := target.ValidateName(d.Name); err != nil {
		return target.ID{}, err
	}
	return target.NewID(kind, d.Name), nil
}

// TargetConfig is the configuration value the definition registers in the store.
func (d TargetDefinition) TargetConfig() (configstore.TargetConfig, error) {
	id, err := d.ID()
	if err != nil {
		return configstore.TargetConfig{}, err
	}
	level, err := logging.ParseLevel(d.LogLevel)
	if err != nil {
		return configstore.TargetConfig{}, err
	}

	config := configstore.DefaultConfig(id.Kind).WithLogLevel(level)
	if d.PollIntervalSeconds != nil {
		config = config.WithInterval(*d.PollIntervalSeconds)
	}
	if d.AutoMonitor != nil && !*d.AutoMonitor {
		config = config.WithoutInterval()
	}
	return config, nil
}

// LoadConfigFromFile loads watchdog configuration from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, err.(*errors.DomainError).WithContext("filename", filename)
	}
	return config, nil
}

// ParseConfig decodes YAML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	options := &config.Watchdog

	defaultLog := logging.DefaultZapConfig()
	if options.Log.Format == "" {
		options.Log.Format = defaultLog.Format
	}
	if options.Log.Output == "" {
		options.Log.Output = defaultLog.Output
	}
	if options.Log.MaxSizeMB == 0 {
		options.Log.MaxSizeMB = defaultLog.MaxSizeMB
	}
	if options.Log.MaxBackups == 0 {
		options.Log.MaxBackups = defaultLog.MaxBackups
	}
	if options.Log.MaxAgeDays == 0 {
		options.Log.MaxAgeDays = defaultLog.MaxAgeDays
	}

	if options.HTTP.Enabled == nil {
		enabled := true
		options.HTTP.Enabled = &enabled
	}
	if options.HTTP.Address == "" {
		options.HTTP.Address = DefaultHTTPAddress
	}
	if options.GRPC.Enabled == nil {
		enabled := true
		options.GRPC.Enabled = &enabled
	}
	if options.GRPC.Port == 0 {
		options.GRPC.Port = DefaultGRPCPort
	}

	if options.IdlePeriod == 0 {
		options.IdlePeriod = monitor.DefaultIdlePeriod
	}
	if options.RestartTimeout == 0 {
		options.RestartTimeout = monitor.DefaultRestartTimeout
	}
	if options.CommandTimeout == 0 {
		options.CommandTimeout = supervisor.DefaultCommandTimeout
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = options.RestartTimeout + shutdownMargin
	}
	if options.WatchConfig == nil {
		watch := true
		options.WatchConfig = &watch
	}

	hasControl := false
	for i := range config.Targets {
		definition := &config.Targets[i]
		if definition.LogLevel == "" {
			definition.LogLevel = logging.LevelInformation.String()
		}
		if kind, err := target.ParseKind(definition.Kind); err == nil && kind == target.KindControl {
			hasControl = true
		}
	}

	if !hasControl {
		config.Targets = append(config.Targets, TargetDefinition{
			Name:     DefaultControlTargetName,
			Kind:     string(target.KindControl),
			LogLevel: logging.LevelInformation.String(),
		})
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateWatchdogOptions(&config.Watchdog); err != nil {
		return errors.NewValidationError("invalid watchdog configuration", err)
	}

	if err := validateTargets(config.Targets); err != nil {
		return errors.NewValidationError("invalid targets configuration", err)
	}
	return nil
}

func validateWatchdogOptions(options *WatchdogOptions) error {
	if options.GRPC.Port < 0 || options.GRPC.Port > 65535 {
		return errors.NewValidationError(fmt.Sprintf("invalid gRPC port: %d", options.GRPC.Port), nil)
	}
	for name, value := range map[string]time.Duration{
		"idle_period":      options.IdlePeriod,
		"restart_timeout":  options.RestartTimeout,
		"command_timeout":  options.CommandTimeout,
		"shutdown_timeout": options.ShutdownTimeout,
	} {
		if value < 0 {
			return errors.NewValidationError(fmt.Sprintf("%s cannot be negative", name), nil)
		}
	}
	if options.ShutdownTimeout <= options.RestartTimeout {
		return errors.NewValidationError(
			fmt.Sprintf("shutdown_timeout (%v) must exceed restart_timeout (%v)", options.ShutdownTimeout, options.RestartTimeout),
			nil,
		)
	}
	return nil
}

// validateTargets reports every invalid target, not only the first one.
func validateTargets(definitions []TargetDefinition) error {
	if len(definitions) == 0 {
		return errors.NewValidationError("at least one target is required", nil)
	}

	collection := errors.NewErrorCollection()
	seen := make(map[target.ID]bool, len(definitions))
	controls := 0
	for i, definition := range definitions {
		id, err := definition.ID()
		if err != nil {
			collection.Add(errors.NewValidationError(fmt.Sprintf("invalid target at index %d", i), err).
				WithContext("target_name", definition.Name))
			continue
		}
		if seen[id] {
			collection.Add(errors.NewValidationError(fmt.Sprintf("duplicate target: %s", id), nil))
			continue
		}
		seen[id] = true

		if err := validateTarget(id, definition); err != nil {
			collection.Add(err)
		}
		if id.Kind == target.KindControl {
			controls++
		}
	}

	if controls > 1 {
		collection.Add(errors.NewValidationError("at most one control target is allowed", nil))
	}
	return collection.ToError()
}

func validateTarget(id target.ID, definition TargetDefinition) error {
	config, err := definition.TargetConfig()
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid target configuration: %s", id), err)
	}
	if err := configstore.ValidateTargetConfig(id, config); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid target configuration: %s", id), err)
	}

	if id.Kind == target.KindControl {
		if definition.Driver != nil {
			return errors.NewValidationError(fmt.Sprintf("control target %s cannot have a driver", id), nil)
		}
		return nil
	}

	var driverConfig driver.Config
	if definition.Driver != nil {
		driverConfig = *definition.Driver
	}
	if err := driver.ValidateConfig(id.Kind, driverConfig); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid driver configuration: %s", id), err)
	}
	return nil
}

// StoreEntries returns the initial store contents of a validated configuration.
func StoreEntries(config *Config) (map[target.ID]configstore.TargetConfig, error) {
	entries := make(map[target.ID]configstore.TargetConfig, len(config.Targets))
	for _, definition := range config.Targets {
		id, err := definition.ID()
		if err != nil {
			return nil, errors.NewValidationError("invalid target", err).WithContext("target_name", definition.Name)
		}
		targetConfig, err := definition.TargetConfig()
		if err != nil {
			return nil, errors.NewValidationError("invalid target configuration", err).WithContext("target", id.String())
		}
		entries[id] = targetConfig
	}
	return entries, nil
}

// CreateDrivers builds one driver per monitored target.
func CreateDrivers(config *Config, runner driver.Runner, logger logging.Logger) (map[target.ID]target.Driver, error) {
	drivers := make(map[target.ID]target.Driver)
	for _, definition := range config.Targets {
		id, err := definition.ID()
		if err != nil {
			return nil, errors.NewValidationError("invalid target", err).WithContext("target_name", definition.Name)
		}
		if !id.Kind.Monitored() {
			continue
		}

		var driverConfig driver.Config
		if definition.Driver != nil {
			driverConfig = *definition.Driver
		}
		d, err := driver.New(id, driverConfig, runner, logger.WithTarget(id.String()))
		if err != nil {
			return nil, err
		}
		drivers[id] = d
	}
	return drivers, nil
}

// SupervisorOptions maps the process-level timeouts onto supervisor options.
func (o WatchdogOptions) SupervisorOptions() supervisor.Options {
	return supervisor.Options{
		Monitor: monitor.Options{
			IdlePeriod:     o.IdlePeriod,
			RestartTimeout: o.RestartTimeout,
		},
		CommandTimeout: o.CommandTimeout,
	}
}

// GetConfigSummary returns a human-readable overview of the configuration
func GetConfigSummary(config *Config) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		HTTPAddress: config.Watchdog.HTTP.Address,
		GRPCPort:    config.Watchdog.GRPC.Port,
		Targets:     make([]TargetSummary, 0, len(config.Targets)),
	}
	for _, definition := range config.Targets {
		targetSummary := TargetSummary{
			Name:     definition.Name,
			Kind:     definition.Kind,
			LogLevel: definition.LogLevel,
		}
		if targetConfig, err := definition.TargetConfig(); err == nil {
			targetSummary.PollIntervalSeconds = targetConfig.PollIntervalSeconds
		}
		if definition.Driver != nil {
			targetSummary.DriverType = string(definition.Driver.Type)
		}
		summary.Targets = append(summary.Targets, targetSummary)
	}
	return summary
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	HTTPAddress string          `json:"http_address"`
	GRPCPort    int             `json:"grpc_port"`
	Targets     []TargetSummary `json:"targets"`
	Error       string          `json:"error,omitempty"`
}

type TargetSummary struct {
	Name                string `json:"name"`
	Kind                string `json:"kind"`
	LogLevel            string `json:"log_level"`
	PollIntervalSeconds *int   `json:"poll_interval_seconds,omitempty"`
	DriverType          string `json:"driver_type,omitempty"`
}
