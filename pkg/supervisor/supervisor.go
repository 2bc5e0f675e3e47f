package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

const DefaultCommandTimeout = 1 * time.Minute

// ProposalObserver is told about every configuration proposal and its outcome.
type ProposalObserver interface {
	ObserveProposal(id target.ID, version uint64, err error)
}

type Options struct {
	Monitor monitor.Options

	// CommandTimeout bounds manual start and stop commands.
	CommandTimeout time.Duration

	Proposals ProposalObserver
}

// SupervisorState represents the lifecycle of the monitor set
type SupervisorState string

const (
	SupervisorStateNotStarted SupervisorState = "not_started"
	SupervisorStateRunning    SupervisorState = "running"
	SupervisorStateStopping   SupervisorState = "stopping"
	SupervisorStateStopped    SupervisorState = "stopped"
)

// TargetInfo combines the stored configuration of a target with its monitor state.
type TargetInfo struct {
	Target  target.ID
	Config  configstore.TargetConfig
	Version uint64

	// State is nil for the control identity.
	State *monitor.State
}

// Supervisor owns the configuration store and one monitor per monitorable target.
type Supervisor struct {
	options  Options
	store    *configstore.Store
	drivers  map[target.ID]target.Driver
	levels   logging.LevelController
	logger   logging.Logger
	recorder monitor.Recorder

	// lifecycle serializes StartAll and StopAll
	lifecycle sync.Mutex

	mutex    sync.Mutex
	state    SupervisorState
	monitors map[target.ID]monitor.Monitor

	controlSubscription *configstore.Subscription
	controlDone         chan struct{}

	levelMutex   sync.Mutex
	levelVersion uint64
}

func New(options Options, store *configstore.Store, drivers map[target.ID]target.Driver, levels logging.LevelController, logger logging.Logger, recorder monitor.Recorder) (*Supervisor, error) {
	if store == nil {
		return nil, errors.NewValidationError("configuration store cannot be nil", nil)
	}
	if levels == nil {
		return nil, errors.NewValidationError("level controller cannot be nil", nil)
	}
	if recorder == nil {
		recorder = monitor.NewNopRecorder()
	}
	if options.CommandTimeout <= 0 {
		options.CommandTimeout = DefaultCommandTimeout
	}

	controls := 0
	for _, id := range store.Targets() {
		if !id.Kind.Monitored() {
			controls++
			continue
		}
		if drivers[id] == nil {
			return nil, errors.NewValidationError("no driver for monitored target", nil).WithContext("target", id.String())
		}
	}
	if controls > 1 {
		return nil, errors.NewValidationError(fmt.Sprintf("at most one control identity is allowed, got %d", controls), nil)
	}
	for id := range drivers {
		if !store.Has(id) {
			return nil, errors.NewUnknownTargetError("driver for unregistered target", nil).WithContext("target", id.String())
		}
	}

	s := &Supervisor{
		options:  options,
		store:    store,
		drivers:  drivers,
		levels:   levels,
		logger:   logger,
		recorder: recorder,
		state:    SupervisorStateNotStarted,
		monitors: make(map[target.ID]monitor.Monitor),
	}

	if id, ok := s.controlID(); ok {
		config, version, _ := store.Get(id)
		s.applyLevel(id, config.LogLevel, version)
	}

	return s, nil
}

// StartAll creates and starts one monitor per monitorable target. It is a no-op when
// already running. After StopAll it starts fresh monitors.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == SupervisorStateRunning {
		s.logger.Debugf("Supervisor already running")
		return nil
	}

	s.logger.Infof("Starting supervisor, targets: %d", len(s.drivers))

	if err := s.startControlApplier(); err != nil {
		return err
	}

	monitors := make(map[target.ID]monitor.Monitor, len(s.drivers))
	for _, id := range s.store.Targets() {
		if !id.Kind.Monitored() {
			continue
		}
		m := monitor.NewMonitor(id, s.store, s.drivers[id], s.options.Monitor, s.logger, s.recorder)
		if err := m.Start(ctx); err != nil {
			for _, started := range monitors {
				started.Stop()
			}
			s.stopControlApplier()
			return errors.NewInternalError("failed to start monitor", err).WithContext("target", id.String())
		}
		monitors[id] = m
	}

	s.mutex.Lock()
	s.monitors = monitors
	s.state = SupervisorStateRunning
	s.mutex.Unlock()

	s.logger.Infof("Supervisor started, monitors: %d", len(monitors))
	return nil
}

// StopAll broadcasts shutdown to every monitor and returns once all of them have
// stopped, including any restart that was in flight.
func (s *Supervisor) StopAll() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != SupervisorStateRunning {
		s.logger.Debugf("Supervisor not running, state: %s", s.State())
		return
	}

	s.logger.Infof("Stopping supervisor...")
	s.setState(SupervisorStateStopping)

	var wg sync.WaitGroup
	for _, m := range s.getMonitors() {
		wg.Add(1)
		go func(m monitor.Monitor) {
			defer wg.Done()
			m.Stop()
		}(m)
	}
	wg.Wait()

	s.stopControlApplier()
	s.setState(SupervisorStateStopped)

	s.logger.Infof("Supervisor stopped")
}

func (s *Supervisor) State() SupervisorState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Propose submits a configuration change. Rejections leave the store unchanged and
// are returned to the caller.
func (s *Supervisor) Propose(id target.ID, candidate configstore.TargetConfig) (uint64, error) {
	version, err := s.store.Propose(id, candidate)
	if s.options.Proposals != nil {
		s.options.Proposals.ObserveProposal(id, version, err)
	}

	logger := s.logger.WithTarget(id.String())
	if err != nil {
		logger.Warnf("Configuration rejected, error: %v", err)
		return 0, err
	}

	logger.Infof("Configuration accepted, version: %d, %s", version, candidate)
	if id.Kind == target.KindControl {
		s.applyLevel(id, candidate.LogLevel, version)
	}
	return version, nil
}

func (s *Supervisor) Config(id target.ID) (configstore.TargetConfig, uint64, error) {
	return s.store.Get(id)
}

// Targets returns every registered target sorted by identity.
func (s *Supervisor) Targets() []TargetInfo {
	entries := s.store.Snapshot()
	result := make([]TargetInfo, 0, len(entries))
	for _, entry := range entries {
		result = append(result, s.targetInfo(entry.Target, entry.Config, entry.Version))
	}
	return result
}

func (s *Supervisor) Target(id target.ID) (TargetInfo, error) {
	config, version, err := s.store.Get(id)
	if err != nil {
		return TargetInfo{}, err
	}
	return s.targetInfo(id, config, version), nil
}

// States returns the monitor state of every monitorable target.
func (s *Supervisor) States() []monitor.State {
	var result []monitor.State
	for _, id := range s.store.Targets() {
		if id.Kind.Monitored() {
			result = append(result, s.monitorState(id))
		}
	}
	return result
}

func (s *Supervisor) MonitorState(id target.ID) (monitor.State, error) {
	if !s.store.Has(id) {
		return monitor.State{}, errors.NewUnknownTargetError("target is not registered", nil).WithContext("target", id.String())
	}
	if !id.Kind.Monitored() {
		return monitor.State{}, errors.NewUnsupportedError("the control identity has no monitor", nil).WithContext("target", id.String())
	}
	return s.monitorState(id), nil
}

// StartTarget issues a one-shot start command through the target's driver.
func (s *Supervisor) StartTarget(ctx context.Context, id target.ID) error {
	return s.command(ctx, id, "start", target.Controller.Start)
}

// StopTarget issues a one-shot stop command. A monitor with an interval configured
// will restart the target on its next cycle.
func (s *Supervisor) StopTarget(ctx context.Context, id target.ID) error {
	return s.command(ctx, id, "stop", target.Controller.Stop)
}

func (s *Supervisor) command(ctx context.Context, id target.ID, name string, run func(target.Controller, context.Context) error) error {
	controller, err := s.controller(id)
	if err != nil {
		return err
	}

	logger := s.logger.WithTarget(id.String())
	logger.Infof("Manual %s requested", name)

	ctx, cancel := context.WithTimeout(ctx, s.options.CommandTimeout)
	defer cancel()

	if err := run(controller, ctx); err != nil {
		logger.Errorf("Manual %s failed, error: %v", name, err)
		return err
	}

	logger.Infof("Manual %s completed", name)
	return nil
}

func (s *Supervisor) controller(id target.ID) (target.Controller, error) {
	if !s.store.Has(id) {
		return nil, errors.NewUnknownTargetError("target is not registered", nil).WithContext("target", id.String())
	}
	controller, ok := s.drivers[id].(target.Controller)
	if !ok {
		return nil, errors.NewUnsupportedError("target does not support manual start and stop", nil).WithContext("target", id.String())
	}
	return controller, nil
}

func (s *Supervisor) targetInfo(id target.ID, config configstore.TargetConfig, version uint64) TargetInfo {
	info := TargetInfo{Target: id, Config: config, Version: version}
	if id.Kind.Monitored() {
		state := s.monitorState(id)
		info.State = &state
	}
	return info
}

func (s *Supervisor) monitorState(id target.ID) monitor.State {
	s.mutex.Lock()
	m, exists := s.monitors[id]
	s.mutex.Unlock()

	if !exists {
		return monitor.InitialState(id)
	}
	return m.State()
}

func (s *Supervisor) getMonitors() []monitor.Monitor {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make([]monitor.Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		result = append(result, m)
	}
	return result
}

func (s *Supervisor) setState(state SupervisorState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = state
}
