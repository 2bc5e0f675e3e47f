package supervisor

import (
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// The control applier is the only writer of the process-wide log level.

func (s *Supervisor) controlID() (target.ID, bool) {
	for _, id := range s.store.Targets() {
		if id.Kind == target.KindControl {
			return id, true
		}
	}
	return target.ID{}, false
}

func (s *Supervisor) startControlApplier() error {
	id, ok := s.controlID()
	if !ok {
		return nil
	}

	subscription, err := s.store.Subscribe(id)
	if err != nil {
		return err
	}

	// Catch up on changes accepted while the applier was not running.
	config, version, err := s.store.Get(id)
	if err != nil {
		subscription.Close()
		return err
	}
	s.applyLevel(id, config.LogLevel, version)

	done := make(chan struct{})
	s.controlSubscription = subscription
	s.controlDone = done

	go func() {
		defer close(done)
		for event := range subscription.Events() {
			s.applyLevel(id, event.Config.LogLevel, event.Version)
		}
	}()
	return nil
}

func (s *Supervisor) stopControlApplier() {
	if s.controlSubscription == nil {
		return
	}
	s.controlSubscription.Close()
	<-s.controlDone
	s.controlSubscription = nil
	s.controlDone = nil
}

// applyLevel sets the process-wide level for a control configuration version. Versions
// at or below the last applied one are ignored, so Propose and the applier can race.
func (s *Supervisor) applyLevel(id target.ID, level logging.Level, version uint64) {
	s.levelMutex.Lock()
	defer s.levelMutex.Unlock()

	if version <= s.levelVersion {
		return
	}
	s.levelVersion = version

	previous := s.levels.Level()
	if previous == level {
		return
	}
	s.levels.SetLevel(level)
	s.logger.WithTarget(id.String()).Infof("Log level changed, level: %s -> %s, version: %d", previous, level, version)
}
