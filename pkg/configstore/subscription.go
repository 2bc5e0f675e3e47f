package configstore

import (
	"sync"

	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// Subscription delivers change events in acceptance order. Each subscription buffers
// without bound so proposers never wait on a slow listener.
type Subscription struct {
	store  *Store
	filter map[target.ID]struct{}

	mutex  sync.Mutex
	queue  []Event
	signal chan struct{}

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(store *Store, filter []target.ID) *Subscription {
	var filterSet map[target.ID]struct{}
	if len(filter) > 0 {
		filterSet = make(map[target.ID]struct{}, len(filter))
		for _, id := range filter {
			filterSet[id] = struct{}{}
		}
	}
	return &Subscription{
		store:  store,
		filter: filterSet,
		signal: make(chan struct{}, 1),
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops delivery. Undelivered events are dropped. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.store.unsubscribe(s)
		close(s.done)
	})
}

func (s *Subscription) matches(id target.ID) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[id]
	return ok
}

// enqueue is called with the store mutex held, which fixes the global order.
func (s *Subscription) enqueue(event Event) {
	if !s.matches(event.Target) {
		return
	}

	s.mutex.Lock()
	s.queue = append(s.queue, event)
	s.mutex.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)

	for {
		s.mutex.Lock()
		batch := s.queue
		s.queue = nil
		s.mutex.Unlock()

		for _, event := range batch {
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.signal:
		case <-s.done:
			return
		}
	}
}
