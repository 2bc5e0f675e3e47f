package watchdog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/control"
	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/driver"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRunner answers systemctl with an active unit and pool commands with "Started".
type fakeRunner struct {
	mutex sync.Mutex
	calls []driver.CommandSpec
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{}
}

func (r *fakeRunner) Run(ctx context.Context, spec driver.CommandSpec) (driver.CommandResult, error) {
	r.mutex.Lock()
	r.calls = append(r.calls, spec)
	r.mutex.Unlock()

	if strings.Contains(spec.Path, "systemctl") {
		return driver.CommandResult{Stdout: "LoadState=loaded\nActiveState=active\n"}, nil
	}
	return driver.CommandResult{Stdout: "Started\n"}, nil
}

func (r *fakeRunner) callCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.calls)
}

const serveConfig = `
watchdog:
  http:
    address: 127.0.0.1:0
  grpc:
    enabled: false
  restart_timeout: 1s
  shutdown_timeout: 2s
targets:
  - name: MockService
    kind: service
    poll_interval_seconds: 1
  - name: mywebapipool
    kind: pool
    poll_interval_seconds: 1
`

func newTestWatchdog(t *testing.T, content string, configure func(*Config)) (*Watchdog, *fakeRunner, *observer.ObservedLogs) {
	t.Helper()

	config, err := ParseConfig([]byte(content))
	require.NoError(t, err)
	if configure != nil {
		configure(config)
	}

	levels := logging.NewLevelController(logging.LevelInformation)
	core, logs := observer.New(levels.Enabler())
	runner := newFakeRunner()

	w, err := New(config, "", levels, logging.NewZapLoggerFromCore(core), Dependencies{
		Runner:   runner,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return w, runner, logs
}

func serveInBackground(t *testing.T, w *Watchdog) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Serve(ctx)
	}()
	return cancel, done
}

func awaitStop(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watchdog did not stop")
	}
}

func httpBody(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	request, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response.StatusCode, string(data)
}

func TestWatchdog_ServeHTTP(t *testing.T) {
	w, runner, logs := newTestWatchdog(t, serveConfig, nil)
	cancel, done := serveInBackground(t, w)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Target is running").Len() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	base := "http://" + w.HTTPAddr()

	code, body := httpBody(t, http.MethodGet, base+"/api/v1/targets", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"target":"control/watchdog"`)
	assert.Contains(t, body, `"target":"pool/mywebapipool"`)
	assert.Contains(t, body, `"target":"service/MockService"`)

	code, body = httpBody(t, http.MethodPut, base+"/api/v1/targets/pool/mywebapipool/config",
		`{"target_kind":"ManagedPool","log_level":"Warning","poll_interval_seconds":2}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"version":2`)

	code, _ = httpBody(t, http.MethodPut, base+"/api/v1/targets/pool/mywebapipool/config",
		`{"target_kind":"ManagedPool","log_level":"Warning","poll_interval_seconds":-3}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = httpBody(t, http.MethodGet, base+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `watchdog_config_proposals_total{result="rejected",target="pool/mywebapipool"} 1`)
	assert.Contains(t, body, `watchdog_config_version{target="pool/mywebapipool"} 2`)
	assert.Contains(t, body, `watchdog_monitor_running{target="service/MockService"} 1`)

	awaitStop(t, cancel, done)

	for _, state := range w.Supervisor().States() {
		assert.Equal(t, monitor.PhaseStopped, state.Phase)
	}
	calls := runner.callCount()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, runner.callCount())
}

func TestWatchdog_ServeGRPC(t *testing.T) {
	w, _, _ := newTestWatchdog(t, serveConfig, func(config *Config) {
		enabled := true
		config.Watchdog.GRPC.Enabled = &enabled
		config.Watchdog.GRPC.Port = 0
		disabled := false
		config.Watchdog.HTTP.Enabled = &disabled
	})
	assert.Empty(t, w.HTTPAddr())
	cancel, done := serveInBackground(t, w)

	conn, err := control.NewConnection(control.ConnectionOptions{Address: w.GRPCAddr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer conn.Shutdown()
	gateway := control.NewGRPCClientGateway(conn.GRPC(), logging.NewNopLogger())

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	version, err := gateway.ProposeConfig(ctx, "control/watchdog", domain.ConfigRecord{TargetKind: "Control", LogLevel: "Error"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	status, err := gateway.TargetStatus(ctx, "control/watchdog")
	require.NoError(t, err)
	assert.Equal(t, "Error", status.LogLevel)

	_, err = gateway.TargetStatus(ctx, "service/Missing")
	assert.True(t, errors.IsUnknownTargetError(err))

	awaitStop(t, cancel, done)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
targets:
  - name: MockService
    kind: daemon
`))
	require.NoError(t, err)

	_, err = New(config, "", logging.NewLevelController(logging.LevelInformation), logging.NewNopLogger(), Dependencies{Runner: newFakeRunner()})
	assert.True(t, errors.IsValidationError(err))
}
