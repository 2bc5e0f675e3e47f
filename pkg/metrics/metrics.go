// Package metrics exposes Prometheus metrics for target monitoring.
//
// Metrics Categories:
//   - Poll cycles: status query counts and latency per target
//   - Restarts: attempts by outcome and restart duration
//   - Configuration: current version per target, accepted and rejected proposals
package metrics

import (
	"net/http"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchdog"

// Metrics records monitor and configuration outcomes into its own registry.
type Metrics struct {
	registry *prometheus.Registry

	checksTotal       *prometheus.CounterVec
	checkDuration     *prometheus.HistogramVec
	driverErrorsTotal *prometheus.CounterVec
	targetUp          *prometheus.GaugeVec

	restartsTotal   *prometheus.CounterVec
	restartDuration *prometheus.HistogramVec

	monitorRunning *prometheus.GaugeVec

	configVersion  *prometheus.GaugeVec
	proposalsTotal *prometheus.CounterVec
}

// New registers every metric on registry. A nil registry gets a fresh one with the
// Go runtime and process collectors.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total number of status queries by observed status",
			},
			[]string{"target", "status"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of status queries in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"target"},
		),

		driverErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_errors_total",
				Help:      "Total number of failed status queries by error type",
			},
			[]string{"target", "type"},
		),

		targetUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "target_up",
				Help:      "Whether the last status query found the target running (1) or not (0)",
			},
			[]string{"target"},
		),

		restartsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restarts_total",
				Help:      "Total number of restart attempts by outcome",
			},
			[]string{"target", "outcome"},
		),

		restartDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "restart_duration_seconds",
				Help:      "Duration of restarts including the confirmation wait",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"target"},
		),

		monitorRunning: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monitor_running",
				Help:      "Whether the target's monitor is running (1) or not (0)",
			},
			[]string{"target"},
		),

		configVersion: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_version",
				Help:      "Current configuration version per target",
			},
			[]string{"target"},
		),

		proposalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_proposals_total",
				Help:      "Total number of configuration proposals by result",
			},
			[]string{"target", "result"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEntries seeds the version gauge from a store snapshot.
func (m *Metrics) ObserveEntries(entries []configstore.Entry) {
	for _, entry := range entries {
		m.configVersion.WithLabelValues(entry.Target.String()).Set(float64(entry.Version))
	}
}

func (m *Metrics) ObserveCheck(id target.ID, status target.Status, duration time.Duration, err error) {
	label := id.String()
	m.checkDuration.WithLabelValues(label).Observe(duration.Seconds())

	if err != nil {
		errorType := string(errors.TypeOf(err))
		if errorType == "" {
			errorType = string(errors.ErrorTypeInternal)
		}
		m.driverErrorsTotal.WithLabelValues(label, errorType).Inc()
		m.targetUp.WithLabelValues(label).Set(0)
		return
	}

	m.checksTotal.WithLabelValues(label, string(status)).Inc()
	if status == target.StatusRunning {
		m.targetUp.WithLabelValues(label).Set(1)
	} else {
		m.targetUp.WithLabelValues(label).Set(0)
	}
}

func (m *Metrics) ObserveRestart(id target.ID, action monitor.Action, duration time.Duration) {
	label := id.String()
	m.restartsTotal.WithLabelValues(label, string(action)).Inc()
	m.restartDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *Metrics) ObservePhase(id target.ID, phase monitor.Phase) {
	value := 0.0
	if phase == monitor.PhaseRunning {
		value = 1
	}
	m.monitorRunning.WithLabelValues(id.String()).Set(value)
}

func (m *Metrics) ObserveProposal(id target.ID, version uint64, err error) {
	label := id.String()
	if err != nil {
		m.proposalsTotal.WithLabelValues(label, "rejected").Inc()
		return
	}
	m.proposalsTotal.WithLabelValues(label, "accepted").Inc()
	m.configVersion.WithLabelValues(label).Set(float64(version))
}
