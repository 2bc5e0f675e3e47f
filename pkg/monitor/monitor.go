package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

const (
	DefaultIdlePeriod     = 1 * time.Second
	DefaultRestartTimeout = 1 * time.Minute
)

type Options struct {
	// IdlePeriod is how long a monitor with no interval waits before re-reading configuration.
	IdlePeriod time.Duration

	// RestartTimeout bounds a single restart including its confirmation wait.
	RestartTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.IdlePeriod <= 0 {
		o.IdlePeriod = DefaultIdlePeriod
	}
	if o.RestartTimeout <= 0 {
		o.RestartTimeout = DefaultRestartTimeout
	}
	return o
}

// Monitor supervises one target. A stopped monitor never resumes.
type Monitor interface {
	ID() target.ID
	Start(ctx context.Context) error

	// Stop abandons any sleep, waits for an in-flight restart to finish and returns
	// once the monitor is stopped. Safe to call more than once.
	Stop()

	State() State
}

type targetMonitor struct {
	id       target.ID
	store    *configstore.Store
	driver   target.Driver
	options  Options
	logger   logging.Logger
	recorder Recorder

	state *State
	mutex sync.Mutex

	subscription *configstore.Subscription
	cancel       context.CancelFunc
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewMonitor(id target.ID, store *configstore.Store, driver target.Driver, options Options, logger logging.Logger, recorder Recorder) Monitor {
	if recorder == nil {
		recorder = NewNopRecorder()
	}
	return &targetMonitor{
		id:       id,
		store:    store,
		driver:   driver,
		options:  options.withDefaults(),
		logger:   logger.WithTarget(id.String()),
		recorder: recorder,
		state:    newState(id),
		stopChan: make(chan struct{}),
	}
}

func (m *targetMonitor) ID() target.ID {
	return m.id
}

func (m *targetMonitor) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state.Phase != PhaseIdle {
		return errors.NewConflictError("monitor can only be started once", nil).
			WithContext("target", m.id.String()).
			WithContext("phase", string(m.state.Phase))
	}

	subscription, err := m.store.Subscribe(m.id)
	if err != nil {
		return err
	}
	m.subscription = subscription

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.state.Phase = PhaseRunning
	m.recorder.ObservePhase(m.id, PhaseRunning)

	m.debugf("Starting monitor, target: %s", m.id)

	m.wg.Add(1)
	go m.loop(runCtx)
	return nil
}

func (m *targetMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.mutex.Lock()
		started := m.state.Phase == PhaseRunning
		if started {
			m.state.Phase = PhaseStopping
		} else {
			m.state.Phase = PhaseStopped
		}
		m.mutex.Unlock()

		m.recorder.ObservePhase(m.id, m.State().Phase)
		m.debugf("Stopping monitor, target: %s", m.id)

		close(m.stopChan)
		if started {
			m.cancel()
		}
	})
	m.wg.Wait()
}

func (m *targetMonitor) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return *m.state
}

func (m *targetMonitor) loop(ctx context.Context) {
	defer m.wg.Done()
	defer m.finish()

	m.debugf("Monitor loop started, target: %s", m.id)

	for {
		if m.stopping() {
			return
		}

		config, version, err := m.store.Get(m.id)
		if err != nil {
			m.logger.Errorf("Failed to read configuration, target: %s, error: %v", m.id, err)
			if !m.wait(ctx, time.Now().Add(m.options.IdlePeriod), true) {
				return
			}
			continue
		}

		interval, enabled := config.Interval()
		if !enabled {
			m.logf(config, logging.LevelTrace, "Monitoring disabled, re-checking in %v", m.options.IdlePeriod)
			if !m.wait(ctx, time.Now().Add(m.options.IdlePeriod), true) {
				return
			}
			continue
		}

		m.check(ctx, config)

		if !m.sleep(ctx, time.Now(), interval, version) {
			return
		}
	}
}

func (m *targetMonitor) finish() {
	m.subscription.Close()

	m.mutex.Lock()
	m.state.Phase = PhaseStopped
	m.mutex.Unlock()

	m.recorder.ObservePhase(m.id, PhaseStopped)
	m.debugf("Monitor stopped, target: %s", m.id)
}

func (m *targetMonitor) stopping() bool {
	select {
	case <-m.stopChan:
		return true
	default:
		return false
	}
}

// sleep waits interval after base. A configuration change newer than version moves the
// deadline to base plus the new interval; disabling monitoring ends the sleep.
func (m *targetMonitor) sleep(ctx context.Context, base time.Time, interval time.Duration, version uint64) bool {
	deadline := base.Add(interval)
	for {
		woken, event := m.waitEvent(ctx, deadline)
		if !woken {
			return false
		}
		if event == nil {
			return true
		}
		if event.Version <= version {
			continue
		}

		newInterval, enabled := event.Config.Interval()
		if !enabled {
			m.logf(event.Config, logging.LevelDebug, "Monitoring disabled by configuration change, target: %s, version: %d", m.id, event.Version)
			return true
		}
		deadline = base.Add(newInterval)
		m.logf(event.Config, logging.LevelDebug, "Poll interval changed, target: %s, interval: %v, version: %d", m.id, newInterval, event.Version)
	}
}

// wait sleeps until deadline. With wakeOnChange any configuration change ends the wait.
func (m *targetMonitor) wait(ctx context.Context, deadline time.Time, wakeOnChange bool) bool {
	for {
		woken, event := m.waitEvent(ctx, deadline)
		if !woken {
			return false
		}
		if event == nil || wakeOnChange {
			return true
		}
	}
}

// waitEvent returns false on shutdown, (true, nil) at the deadline and (true, event)
// when a configuration change for this target arrives first.
func (m *targetMonitor) waitEvent(ctx context.Context, deadline time.Time) (bool, *configstore.Event) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return !m.stopping(), nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-m.stopChan:
		return false, nil
	case <-ctx.Done():
		return false, nil
	case <-timer.C:
		return true, nil
	case event, ok := <-m.subscription.Events():
		if !ok {
			return false, nil
		}
		return true, &event
	}
}

func (m *targetMonitor) check(ctx context.Context, config configstore.TargetConfig) {
	m.logf(config, logging.LevelTrace, "Querying status")

	start := time.Now()
	status, err := m.driver.QueryStatus(ctx)
	m.recorder.ObserveCheck(m.id, status, time.Since(start), err)

	if err != nil {
		if ctx.Err() != nil {
			m.logf(config, logging.LevelDebug, "Status query abandoned on shutdown, target: %s", m.id)
			return
		}
		m.logf(config, logging.LevelError, "Failed to query status, error: %v", err)
		m.updateState(func(s *State) {
			s.LastCheck = start
			s.LastStatus = target.StatusUnknown
			s.LastAction = ActionNone
			s.LastError = err.Error()
		})
		return
	}

	m.updateState(func(s *State) {
		s.LastCheck = start
		s.LastStatus = status
		s.LastError = ""
	})

	switch {
	case status.NeedsRestart():
		if m.stopping() {
			m.logf(config, logging.LevelDebug, "Skipping restart on shutdown, target: %s, status: %s", m.id, status)
			return
		}
		m.restart(ctx, config, status)
	case status == target.StatusRunning:
		m.logf(config, logging.LevelInformation, "Target is running")
		m.setAction(ActionNone)
	case status == target.StatusStarting:
		m.logf(config, logging.LevelInformation, "Target is starting")
		m.setAction(ActionNone)
	default:
		m.logf(config, logging.LevelWarning, "Target status is %s", status)
		m.setAction(ActionNone)
	}
}

// restart runs detached from shutdown so that an in-flight wait completes, bounded by
// the restart timeout.
func (m *targetMonitor) restart(ctx context.Context, config configstore.TargetConfig, status target.Status) {
	m.logf(config, logging.LevelWarning, "Target is %s, attempting restart", status)
	m.updateState(func(s *State) {
		s.LastAction = ActionRestartAttempted
		s.Restarts++
	})

	restartCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.options.RestartTimeout)
	defer cancel()

	start := time.Now()
	result, err := m.driver.Restart(restartCtx, m.options.RestartTimeout)
	duration := time.Since(start)

	if result.Output != "" {
		m.logf(config, logging.LevelInformation, "Restart output: %s", result.Output)
	}
	if result.ErrorOutput != "" {
		m.logf(config, logging.LevelError, "Restart error output: %s", result.ErrorOutput)
	}

	if err != nil {
		m.logf(config, logging.LevelError, "Restart failed, error: %v", err)
		m.updateState(func(s *State) {
			s.LastAction = ActionRestartFailed
			s.LastError = err.Error()
		})
		m.recorder.ObserveRestart(m.id, ActionRestartFailed, duration)
		return
	}

	if result.Confirmed {
		m.logf(config, logging.LevelInformation, "Target restarted successfully")
	} else {
		m.logf(config, logging.LevelInformation, "Restart issued, confirmation not awaited")
	}
	m.setAction(ActionRestartSucceeded)
	m.recorder.ObserveRestart(m.id, ActionRestartSucceeded, duration)
}

// logf applies the target's own verbosity on top of the process-wide threshold.
func (m *targetMonitor) logf(config configstore.TargetConfig, level logging.Level, format string, args ...interface{}) {
	if level < config.LogLevel {
		return
	}
	m.logger.LogLevelf(level, format, args...)
}

// debugf logs lifecycle entries under the target's current verbosity. Failures to read
// the configuration are logged unfiltered.
func (m *targetMonitor) debugf(format string, args ...interface{}) {
	config, _, err := m.store.Get(m.id)
	if err != nil {
		m.logger.Debugf(format, args...)
		return
	}
	m.logf(config, logging.LevelDebug, format, args...)
}

func (m *targetMonitor) setAction(action Action) {
	m.updateState(func(s *State) { s.LastAction = action })
}

func (m *targetMonitor) updateState(update func(s *State)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	update(m.state)
}
