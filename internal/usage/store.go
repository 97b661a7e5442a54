package usage

import (
	"context"
	"sync"

	"time"

	"github.com/google/uuid"
)

// EventStore persists the append-only usage event stream.
type EventStore interface {
	// InsertEvent appends one event.
	InsertEvent(ctx context.Context, event Event) error

	// EventsSince returns the customer's events created at or after since,
	// oldest first.
	EventsSince(ctx context.Context, customerID string, since time.Time) ([]Event, error)
}

// MemoryEventStore is an in-memory EventStore used by tests and by
// loadpilotd when no database is configured.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]Event // customerID -> events
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]Event)}
}

// InsertEvent appends one event.
func (s *MemoryEventStore) InsertEvent(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.events[event.CustomerID] = append(s.events[event.CustomerID], event)
	return nil
}

// EventsSince returns events created at or after since.
func (s *MemoryEventStore) EventsSince(ctx context.Context, customerID string, since time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events[customerID] {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
