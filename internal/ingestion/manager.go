package ingestion

import (
	"context"
	"errors"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/replay"
	"amm-strategy-lab/internal/storage"
)

// Manager orchestrates ingestion from loaded series to storage.
// It enforces deterministic ordering and leaves duplicate rejection to the
// storage layer.
type Manager struct {
	pool       *domain.Pool
	poolStore  storage.PoolStore
	eventStore storage.EventStore
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Pool       *domain.Pool
	PoolStore  storage.PoolStore
	EventStore storage.EventStore
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		pool:       opts.Pool,
		poolStore:  opts.PoolStore,
		eventStore: opts.EventStore,
	}
}

// RegisterPool stores the pool descriptor if it is not known yet.
func (m *Manager) RegisterPool(ctx context.Context) error {
	if m.poolStore == nil {
		return nil
	}
	err := m.poolStore.Insert(ctx, m.pool)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// IngestEvents sorts a loaded series into replay order and stores it.
// Returns the count of ingested events.
func (m *Manager) IngestEvents(ctx context.Context, events []*domain.Event) (int, error) {
	if m.eventStore == nil || len(events) == 0 {
		return 0, nil
	}

	replay.SortEvents(events)

	if err := m.eventStore.InsertBulk(ctx, m.pool.Address, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// IngestDir loads a pool's CSV export directory and stores the merged
// series.
func (m *Manager) IngestDir(ctx context.Context, dir string) (int, error) {
	events, err := LoadDir(dir, m.pool)
	if err != nil {
		return 0, err
	}
	return m.IngestEvents(ctx, events)
}

// IngestSynthetic generates a synthetic price series and stores it.
func (m *Manager) IngestSynthetic(ctx context.Context, cfg SyntheticConfig) (int, error) {
	return m.IngestEvents(ctx, GenerateSynthetic(cfg))
}
