package changestream

import (
	"fmt"
	"sync"
)

// Listener receives change events. Returning an error aborts delivery of the
// event and is propagated to the writer.
type Listener func(ChangeEvent) error

// Stream fans change events out to registered listeners.
//
// Thread-safety: Register and Notify may be called concurrently. Notify only
// holds the lock long enough to copy the listener slice.
type Stream struct {
	mu        sync.Mutex
	listeners []Listener
}

// New creates an empty stream.
func New() *Stream {
	return &Stream{}
}

// Register appends a listener. Listeners are invoked in registration order.
func (s *Stream) Register(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Len returns the number of registered listeners.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Notify delivers ev to every listener, outside the lock, in registration
// order. The first listener error stops delivery and is returned.
func (s *Stream) Notify(ev ChangeEvent) error {
	s.mu.Lock()
	snapshot := make([]Listener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for i, l := range snapshot {
		if err := l(ev); err != nil {
			return fmt.Errorf("listener %d on %s %s: %w", i, ev.Operation, ev.Table, err)
		}
	}
	return nil
}
