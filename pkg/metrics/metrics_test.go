package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/supervisor"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ monitor.Recorder            = (*Metrics)(nil)
	_ supervisor.ProposalObserver = (*Metrics)(nil)
)

var serviceID = target.NewID(target.KindService, "MockService")

func TestMetrics_ObserveCheck(t *testing.T) {
	m := New(prometheus.NewRegistry())
	label := serviceID.String()

	m.ObserveCheck(serviceID, target.StatusRunning, 10*time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checksTotal.WithLabelValues(label, "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.targetUp.WithLabelValues(label)))

	m.ObserveCheck(serviceID, target.StatusStopped, 10*time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checksTotal.WithLabelValues(label, "stopped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.targetUp.WithLabelValues(label)))

	m.ObserveCheck(serviceID, target.StatusUnknown, time.Millisecond, errors.NewDriverUnavailableError("unit not found", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.driverErrorsTotal.WithLabelValues(label, "driver_unavailable")))

	assert.Equal(t, 3, testutil.CollectAndCount(m.checkDuration))
}

func TestMetrics_ObserveRestartAndPhase(t *testing.T) {
	m := New(prometheus.NewRegistry())
	label := serviceID.String()

	m.ObserveRestart(serviceID, monitor.ActionRestartSucceeded, time.Second)
	m.ObserveRestart(serviceID, monitor.ActionRestartFailed, time.Minute)
	m.ObserveRestart(serviceID, monitor.ActionRestartFailed, time.Minute)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.restartsTotal.WithLabelValues(label, "restart_succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.restartsTotal.WithLabelValues(label, "restart_failed")))

	m.ObservePhase(serviceID, monitor.PhaseRunning)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.monitorRunning.WithLabelValues(label)))
	m.ObservePhase(serviceID, monitor.PhaseStopped)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.monitorRunning.WithLabelValues(label)))
}

func TestMetrics_ObserveProposal(t *testing.T) {
	m := New(prometheus.NewRegistry())
	label := serviceID.String()

	m.ObserveEntries([]configstore.Entry{{Target: serviceID, Config: configstore.DefaultConfig(target.KindService), Version: 1}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.configVersion.WithLabelValues(label)))

	m.ObserveProposal(serviceID, 2, nil)
	m.ObserveProposal(serviceID, 0, errors.NewInvalidConfigError("poll interval must be positive", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.configVersion.WithLabelValues(label)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposalsTotal.WithLabelValues(label, "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposalsTotal.WithLabelValues(label, "rejected")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObservePhase(serviceID, monitor.PhaseRunning)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, `watchdog_monitor_running{target="service/MockService"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
