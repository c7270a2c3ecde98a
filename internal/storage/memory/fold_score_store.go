package memory

import (
	"context"
	"sort"
	"sync"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// FoldScoreStore is an in-memory implementation of storage.FoldScoreStore.
type FoldScoreStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.FoldScore // keyed by fold_id
	byRun map[string][]*domain.FoldScore
}

var _ storage.FoldScoreStore = (*FoldScoreStore)(nil)

// NewFoldScoreStore creates a new in-memory fold score store.
func NewFoldScoreStore() *FoldScoreStore {
	return &FoldScoreStore{
		data:  make(map[string]*domain.FoldScore),
		byRun: make(map[string][]*domain.FoldScore),
	}
}

// InsertBulk adds multiple fold scores atomically. Fails the entire batch
// on any duplicate fold_id.
func (s *FoldScoreStore) InsertBulk(_ context.Context, scores []*domain.FoldScore) error {
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(scores))
	for _, sc := range scores {
		if sc == nil || sc.FoldID == "" || sc.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[sc.FoldID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[sc.FoldID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[sc.FoldID] = struct{}{}
	}

	for _, sc := range scores {
		cp := *sc
		s.data[sc.FoldID] = &cp
		s.byRun[sc.RunID] = append(s.byRun[sc.RunID], &cp)
	}
	return nil
}

// GetByRunID retrieves a run's fold scores ordered by fold index.
func (s *FoldScoreStore) GetByRunID(_ context.Context, runID string) ([]*domain.FoldScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := s.byRun[runID]
	result := make([]*domain.FoldScore, 0, len(scores))
	for _, sc := range scores {
		cp := *sc
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FoldIndex < result[j].FoldIndex
	})
	return result, nil
}
