package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/replay"
	"amm-strategy-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Event // keyed by composite key
	byPool map[string][]*domain.Event
}

var _ storage.EventStore = (*EventStore)(nil)

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data:   make(map[string]*domain.Event),
		byPool: make(map[string][]*domain.Event),
	}
}

// eventKey generates a unique key for an event.
func eventKey(pool string, e *domain.Event) string {
	return fmt.Sprintf("%s|%d|%d|%s|%d", pool, e.BlockNumber, e.LogIndex, e.Kind, e.Timestamp.UnixNano())
}

// InsertBulk adds multiple events for a pool. Fails the entire batch on any
// duplicate.
func (s *EventStore) InsertBulk(_ context.Context, pool string, events []*domain.Event) error {
	if pool == "" {
		return storage.ErrInvalidInput
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates.
	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		key := eventKey(pool, e)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		cp := *e
		s.data[eventKey(pool, e)] = &cp
		s.byPool[pool] = append(s.byPool[pool], &cp)
	}
	return nil
}

// GetByPool retrieves all events for a pool in canonical replay order.
func (s *EventStore) GetByPool(_ context.Context, pool string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(pool, func(*domain.Event) bool { return true }), nil
}

// GetByTimeRange retrieves a pool's events with timestamp in [from, to].
func (s *EventStore) GetByTimeRange(_ context.Context, pool string, from, to time.Time) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(pool, func(e *domain.Event) bool {
		return !e.Timestamp.Before(from) && !e.Timestamp.After(to)
	}), nil
}

// GetByBlockRange retrieves a pool's events with block number in [from, to].
func (s *EventStore) GetByBlockRange(_ context.Context, pool string, from, to int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(pool, func(e *domain.Event) bool {
		return e.BlockNumber >= from && e.BlockNumber <= to
	}), nil
}

// collect copies the pool's matching events and sorts them into canonical
// replay order. Callers hold the read lock.
func (s *EventStore) collect(pool string, match func(*domain.Event) bool) []*domain.Event {
	var result []*domain.Event
	for _, e := range s.byPool[pool] {
		if match(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	replay.SortEvents(result)
	return result
}
