package watchdog

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/driver"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicConfig = `
watchdog:
  idle_period: 2s
  log:
    format: console
targets:
  - name: MockService
    kind: ManagedService
    log_level: Debug
  - name: mywebapipool
    kind: pool
    poll_interval_seconds: 30
  - name: nightly
    kind: service
    auto_monitor: false
    driver:
      unit: nightly-report.service
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "watchdog.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig([]byte(basicConfig))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))

	options := config.Watchdog
	assert.Equal(t, 2*time.Second, options.IdlePeriod)
	assert.Equal(t, time.Minute, options.RestartTimeout)
	assert.Equal(t, time.Minute, options.CommandTimeout)
	assert.Equal(t, DefaultShutdownTimeout, options.ShutdownTimeout)
	assert.Equal(t, "console", options.Log.Format)
	assert.Equal(t, "stdout", options.Log.Output)
	assert.True(t, *options.HTTP.Enabled)
	assert.Equal(t, DefaultHTTPAddress, options.HTTP.Address)
	assert.True(t, *options.GRPC.Enabled)
	assert.Equal(t, DefaultGRPCPort, options.GRPC.Port)
	assert.True(t, *options.WatchConfig)

	require.Len(t, config.Targets, 4)
	control := config.Targets[3]
	assert.Equal(t, DefaultControlTargetName, control.Name)
	assert.Equal(t, "control", control.Kind)
	assert.Equal(t, "Information", config.Targets[1].LogLevel)
}

func TestParseConfig_KeepsDeclaredControl(t *testing.T) {
	config, err := ParseConfig([]byte(`
targets:
  - name: ControlService
    kind: Control
    log_level: Warning
`))
	require.NoError(t, err)
	require.Len(t, config.Targets, 1)
	assert.Equal(t, "ControlService", config.Targets[0].Name)
}

func TestStoreEntries(t *testing.T) {
	config, err := ParseConfig([]byte(basicConfig))
	require.NoError(t, err)

	entries, err := StoreEntries(config)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	service := entries[target.NewID(target.KindService, "MockService")]
	assert.Equal(t, logging.LevelDebug, service.LogLevel)
	interval, ok := service.Interval()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, interval)

	pool := entries[target.NewID(target.KindPool, "mywebapipool")]
	interval, ok = pool.Interval()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, interval)

	_, ok = entries[target.NewID(target.KindService, "nightly")].Interval()
	assert.False(t, ok)

	control := entries[target.NewID(target.KindControl, DefaultControlTargetName)]
	assert.Equal(t, target.KindControl, control.Kind)
	_, ok = control.Interval()
	assert.False(t, ok)
}

func TestValidateConfig_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "unknown kind",
			config: `
targets:
  - name: MockService
    kind: daemon
`,
		},
		{
			name: "invalid name",
			config: `
targets:
  - name: "my service"
    kind: service
`,
		},
		{
			name: "duplicate target",
			config: `
targets:
  - name: MockService
    kind: service
  - name: MockService
    kind: ManagedService
`,
		},
		{
			name: "invalid log level",
			config: `
targets:
  - name: MockService
    kind: service
    log_level: Loud
`,
		},
		{
			name: "non-positive interval",
			config: `
targets:
  - name: mywebapipool
    kind: pool
    poll_interval_seconds: 0
`,
		},
		{
			name: "control with interval",
			config: `
targets:
  - name: ControlService
    kind: control
    poll_interval_seconds: 5
`,
		},
		{
			name: "two controls",
			config: `
targets:
  - name: ControlService
    kind: control
  - name: Other
    kind: control
`,
		},
		{
			name: "control with driver",
			config: `
targets:
  - name: ControlService
    kind: control
    driver:
      unit: control.service
`,
		},
		{
			name: "systemd driver with commands",
			config: `
targets:
  - name: MockService
    kind: service
    driver:
      type: systemd
      status:
        path: /usr/bin/status
`,
		},
		{
			name: "shutdown shorter than restart wait",
			config: `
watchdog:
  restart_timeout: 1m
  shutdown_timeout: 30s
targets:
  - name: MockService
    kind: service
`,
		},
		{
			name: "shutdown equal to restart wait",
			config: `
watchdog:
  restart_timeout: 45s
  shutdown_timeout: 45s
targets:
  - name: MockService
    kind: service
`,
		},
		{
			name: "negative timeout",
			config: `
watchdog:
  restart_timeout: -1s
targets:
  - name: MockService
    kind: service
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseConfig([]byte(tt.config))
			require.NoError(t, err)

			err = ValidateConfig(config)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "unexpected error: %v", err)
		})
	}

	assert.True(t, errors.IsValidationError(ValidateConfig(nil)))
}

func TestParseConfig_ShutdownTimeoutFollowsRestartTimeout(t *testing.T) {
	config, err := ParseConfig([]byte(`
watchdog:
  restart_timeout: 2m
targets:
  - name: MockService
    kind: service
`))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))
	assert.Equal(t, 2*time.Minute+30*time.Second, config.Watchdog.ShutdownTimeout)
	assert.Equal(t, 90*time.Second, DefaultShutdownTimeout)
}

func TestValidateConfig_ReportsEveryInvalidTarget(t *testing.T) {
	config, err := ParseConfig([]byte(`
targets:
  - name: MockService
    kind: daemon
  - name: mywebapipool
    kind: pool
    poll_interval_seconds: 0
  - name: reports
    kind: service
  - name: reports
    kind: service
  - name: nightly
    kind: service
    poll_interval_seconds: 99999999999
`))
	require.NoError(t, err)

	err = ValidateConfig(config)
	require.True(t, errors.IsValidationError(err))

	var collection *errors.ErrorCollection
	require.True(t, stderrors.As(err, &collection))
	assert.Len(t, collection.Errors, 4)
	assert.Contains(t, err.Error(), "invalid target at index 0")
	assert.Contains(t, err.Error(), "pool/mywebapipool")
	assert.Contains(t, err.Error(), "duplicate target: service/reports")
	assert.Contains(t, err.Error(), "service/nightly")
}

func TestLoadConfigFromFile(t *testing.T) {
	config, err := LoadConfigFromFile(writeConfig(t, basicConfig))
	require.NoError(t, err)
	assert.Len(t, config.Targets, 4)

	_, err = LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsIOError(err))

	_, err = LoadConfigFromFile(writeConfig(t, "targets: [unterminated"))
	assert.True(t, errors.IsValidationError(err))
}

func TestCreateDrivers(t *testing.T) {
	config, err := ParseConfig([]byte(basicConfig))
	require.NoError(t, err)

	drivers, err := CreateDrivers(config, newFakeRunner(), logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, drivers, 3)

	assert.IsType(t, &driver.SystemdDriver{}, drivers[target.NewID(target.KindService, "MockService")])
	assert.IsType(t, &driver.SystemdDriver{}, drivers[target.NewID(target.KindService, "nightly")])
	assert.IsType(t, &driver.CommandDriver{}, drivers[target.NewID(target.KindPool, "mywebapipool")])
}

func TestGetConfigSummary(t *testing.T) {
	config, err := ParseConfig([]byte(basicConfig))
	require.NoError(t, err)

	summary := GetConfigSummary(config)
	assert.Equal(t, DefaultGRPCPort, summary.GRPCPort)
	require.Len(t, summary.Targets, 4)
	require.NotNil(t, summary.Targets[1].PollIntervalSeconds)
	assert.Equal(t, 30, *summary.Targets[1].PollIntervalSeconds)
	assert.Nil(t, summary.Targets[2].PollIntervalSeconds)
	assert.Empty(t, summary.Targets[2].DriverType)

	assert.Equal(t, "configuration is nil", GetConfigSummary(nil).Error)
}
