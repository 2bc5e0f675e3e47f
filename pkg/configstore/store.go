package configstore

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// Event is published once per accepted proposal.
type Event struct {
	Target  target.ID
	Config  TargetConfig
	Version uint64
}

// Entry is a point-in-time view of one stored configuration.
type Entry struct {
	Target  target.ID
	Config  TargetConfig
	Version uint64
}

type snapshot struct {
	config  TargetConfig
	version uint64
}

type entry struct {
	current atomic.Pointer[snapshot]
}

// Store holds the latest configuration of every known target.
// Reads are lock-free; proposals are serialized and published in acceptance order.
type Store struct {
	entries map[target.ID]*entry // key set fixed at construction

	mutex       sync.Mutex
	subscribers map[*Subscription]struct{}
}

// New registers the fixed identity set with its initial configurations at version 1.
func New(initial map[target.ID]TargetConfig) (*Store, error) {
	if len(initial) == 0 {
		return nil, errors.NewValidationError("configuration store requires at least one target", nil)
	}

	entries := make(map[target.ID]*entry, len(initial))
	for id, config := range initial {
		if err := target.ValidateName(id.Name); err != nil {
			return nil, errors.NewValidationError("invalid target name", err).WithContext("target", id.String())
		}
		if err := ValidateTargetConfig(id, config); err != nil {
			return nil, err
		}
		e := &entry{}
		e.current.Store(&snapshot{config: config.clone(), version: 1})
		entries[id] = e
	}

	return &Store{
		entries:     entries,
		subscribers: make(map[*Subscription]struct{}),
	}, nil
}

// Get returns the latest configuration and its version.
func (s *Store) Get(id target.ID) (TargetConfig, uint64, error) {
	e, exists := s.entries[id]
	if !exists {
		return TargetConfig{}, 0, errors.NewUnknownTargetError("target is not registered", nil).WithContext("target", id.String())
	}
	current := e.current.Load()
	return current.config.clone(), current.version, nil
}

// Propose validates the candidate, atomically replaces the stored value, bumps the
// version and notifies subscribers. On error the store is unchanged.
func (s *Store) Propose(id target.ID, candidate TargetConfig) (uint64, error) {
	e, exists := s.entries[id]
	if !exists {
		return 0, errors.NewUnknownTargetError("target is not registered", nil).WithContext("target", id.String())
	}

	if err := ValidateTargetConfig(id, candidate); err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := &snapshot{
		config:  candidate.clone(),
		version: e.current.Load().version + 1,
	}
	e.current.Store(next)

	event := Event{Target: id, Config: next.config, Version: next.version}
	for subscription := range s.subscribers {
		subscription.enqueue(event)
	}

	return next.version, nil
}

// Has reports whether the identity is registered.
func (s *Store) Has(id target.ID) bool {
	_, exists := s.entries[id]
	return exists
}

// Targets returns every registered identity sorted by its textual form.
func (s *Store) Targets() []target.ID {
	ids := make([]target.ID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Snapshot returns the current entries sorted by identity.
func (s *Store) Snapshot() []Entry {
	ids := s.Targets()
	result := make([]Entry, 0, len(ids))
	for _, id := range ids {
		current := s.entries[id].current.Load()
		result = append(result, Entry{Target: id, Config: current.config.clone(), Version: current.version})
	}
	return result
}

// Subscribe registers a listener for future events. With a filter only events for the
// listed identities are delivered.
func (s *Store) Subscribe(filter ...target.ID) (*Subscription, error) {
	for _, id := range filter {
		if !s.Has(id) {
			return nil, errors.NewUnknownTargetError(fmt.Sprintf("cannot subscribe to %s", id), nil).WithContext("target", id.String())
		}
	}

	subscription := newSubscription(s, filter)

	s.mutex.Lock()
	s.subscribers[subscription] = struct{}{}
	s.mutex.Unlock()

	go subscription.pump()
	return subscription, nil
}

func (s *Store) unsubscribe(subscription *Subscription) {
	s.mutex.Lock()
	delete(s.subscribers, subscription)
	s.mutex.Unlock()
}

// SubscriberCount is used for diagnostics and tests.
func (s *Store) SubscriberCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.subscribers)
}
