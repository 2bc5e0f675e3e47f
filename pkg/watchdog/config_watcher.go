package watchdog

import (
	"context"
	"path/filepath"
	"reflect"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"github.com/fsnotify/fsnotify"
)

const DefaultReloadDebounce = 250 * time.Millisecond

// Proposer accepts configuration proposals; *supervisor.Supervisor satisfies it.
type Proposer interface {
	Propose(id target.ID, candidate configstore.TargetConfig) (uint64, error)
}

// ConfigWatcher turns edits of the configuration file into proposals. Only the
// per-target fields (log level, poll interval, auto-monitor) are live; added or
// removed targets, driver settings and process options need a restart and are
// reported instead.
type ConfigWatcher struct {
	filename string
	current  *Config
	proposer Proposer
	debounce time.Duration
	logger   logging.Logger
}

func NewConfigWatcher(filename string, loaded *Config, proposer Proposer, logger logging.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		filename: filename,
		current:  loaded,
		proposer: proposer,
		debounce: DefaultReloadDebounce,
		logger:   logger,
	}
}

func (w *ConfigWatcher) String() string {
	return "config-watcher"
}

// Serve watches the file's directory so that editors replacing the file by rename are seen.
func (w *ConfigWatcher) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIOError("failed to create file watcher", err)
	}
	defer watcher.Close()

	absolute, err := filepath.Abs(w.filename)
	if err != nil {
		return errors.NewIOError("failed to resolve configuration file path", err).WithContext("filename", w.filename)
	}
	if err := watcher.Add(filepath.Dir(absolute)); err != nil {
		return errors.NewIOError("failed to watch configuration directory", err).WithContext("filename", w.filename)
	}

	w.logger.Infof("Watching configuration file: %s", absolute)

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.logger.Debugf("Configuration watcher stopped")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.NewIOError("file watcher events channel closed", nil)
			}
			if filepath.Clean(event.Name) != absolute {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debugf("Configuration file event: %s", event)
			reload = time.After(w.debounce)

		case <-reload:
			reload = nil
			w.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.NewIOError("file watcher errors channel closed", nil)
			}
			w.logger.Errorf("File watcher error: %v", err)
		}
	}
}

// Reload reads the file and proposes every changed target configuration.
// It returns the number of accepted proposals.
func (w *ConfigWatcher) Reload() int {
	loaded, err := LoadConfigFromFile(w.filename)
	if err == nil {
		err = ValidateConfig(loaded)
	}
	if err != nil {
		w.logger.Errorf("Configuration reload failed, keeping current configuration, error: %v", err)
		return 0
	}

	for _, change := range structuralChanges(w.current, loaded) {
		w.logger.Warnf("Configuration change requires a restart and was not applied: %s", change)
	}

	previous := make(map[target.ID]TargetDefinition, len(w.current.Targets))
	for _, definition := range w.current.Targets {
		if id, err := definition.ID(); err == nil {
			previous[id] = definition
		}
	}

	accepted := 0
	for _, definition := range loaded.Targets {
		id, _ := definition.ID()
		before, ok := previous[id]
		if !ok {
			continue
		}

		beforeConfig, _ := before.TargetConfig()
		afterConfig, _ := definition.TargetConfig()
		if beforeConfig.Equal(afterConfig) {
			continue
		}

		version, err := w.proposer.Propose(id, afterConfig)
		if err != nil {
			w.logger.Warnf("Configuration file change rejected, target: %s, error: %v", id, err)
			continue
		}
		w.logger.Infof("Configuration file change applied, target: %s, version: %d", id, version)
		accepted++
	}

	w.current = loaded
	return accepted
}

func structuralChanges(before, after *Config) []string {
	var changes []string
	if !reflect.DeepEqual(before.Watchdog, after.Watchdog) {
		changes = append(changes, "watchdog options changed")
	}

	definitions := func(config *Config) map[target.ID]TargetDefinition {
		result := make(map[target.ID]TargetDefinition, len(config.Targets))
		for _, definition := range config.Targets {
			if id, err := definition.ID(); err == nil {
				result[id] = definition
			}
		}
		return result
	}
	beforeTargets := definitions(before)
	afterTargets := definitions(after)

	for id := range afterTargets {
		if _, ok := beforeTargets[id]; !ok {
			changes = append(changes, "target added: "+id.String())
		}
	}
	for id, definition := range beforeTargets {
		updated, ok := afterTargets[id]
		if !ok {
			changes = append(changes, "target removed: "+id.String())
			continue
		}
		if !reflect.DeepEqual(definition.Driver, updated.Driver) {
			changes = append(changes, "driver changed: "+id.String())
		}
	}
	return changes
}
