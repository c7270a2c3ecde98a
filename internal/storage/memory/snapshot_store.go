package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.SnapshotRow // keyed by composite key
	byRun map[string][]*domain.SnapshotRow
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data:  make(map[string]*domain.SnapshotRow),
		byRun: make(map[string][]*domain.SnapshotRow),
	}
}

// snapshotKey generates a unique key for a snapshot row.
func snapshotKey(r *domain.SnapshotRow) string {
	return fmt.Sprintf("%s|%d|%s", r.RunID, r.Timestamp.UnixNano(), r.Column)
}

// InsertBulk adds multiple snapshot rows. Fails the entire batch on any
// duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, rows []*domain.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.Column == "" {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		cp := *r
		s.data[snapshotKey(r)] = &cp
		s.byRun[r.RunID] = append(s.byRun[r.RunID], &cp)
	}
	return nil
}

// GetByRunID retrieves a run's snapshot rows ordered by (timestamp, column).
func (s *SnapshotStore) GetByRunID(_ context.Context, runID string) ([]*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byRun[runID]
	result := make([]*domain.SnapshotRow, 0, len(rows))
	for _, r := range rows {
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Column < result[j].Column
	})
	return result, nil
}
