package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/replay"
	"amm-strategy-lab/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	pool, kind, ts, block_number, log_index,
	price, price_before, price_next, tick,
	owner, amount0, amount1, tick_lower, tick_upper, liquidity
`

// InsertBulk adds multiple events for a pool. Fails entire batch on duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, pool string, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		block, logIndex int64
		kind            domain.EventKind
		tsNano          int64
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		k := key{e.BlockNumber, e.LogIndex, e.Kind, e.Timestamp.UnixNano()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows. MergeTree does not
	// enforce uniqueness, so the check has to happen before insert.
	for _, e := range events {
		exists, err := s.exists(ctx, pool, e)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO pool_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			pool,
			string(e.Kind),
			e.Timestamp.UTC(),
			e.BlockNumber,
			e.LogIndex,
			e.Price,
			e.PriceBefore,
			e.PriceNext,
			int32(e.Tick),
			e.Owner,
			e.Amount0,
			e.Amount1,
			int32(e.TickLower),
			int32(e.TickUpper),
			e.Liquidity,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPool retrieves all events for a pool in canonical replay order.
func (s *EventStore) GetByPool(ctx context.Context, pool string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM pool_events
		WHERE pool = ?
		ORDER BY ts ASC, block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("query events by pool: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves a pool's events with timestamp in [from, to].
func (s *EventStore) GetByTimeRange(ctx context.Context, pool string, from, to time.Time) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM pool_events
		WHERE pool = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByBlockRange retrieves a pool's events with block number in [from, to].
func (s *EventStore) GetByBlockRange(ctx context.Context, pool string, from, to int64) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM pool_events
		WHERE pool = ? AND block_number >= ? AND block_number <= ?
		ORDER BY ts ASC, block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events by block range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *EventStore) exists(ctx context.Context, pool string, e *domain.Event) (bool, error) {
	query := `
		SELECT count() FROM pool_events
		WHERE pool = ? AND block_number = ? AND log_index = ? AND kind = ? AND ts = ?
	`

	var count uint64
	row := s.conn.QueryRow(ctx, query, pool, e.BlockNumber, e.LogIndex, string(e.Kind), e.Timestamp.UTC())
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows driver.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var (
			e                          domain.Event
			pool, kind                 string
			ts                         time.Time
			tick, tickLower, tickUpper int32
		)
		err := rows.Scan(
			&pool,
			&kind,
			&ts,
			&e.BlockNumber,
			&e.LogIndex,
			&e.Price,
			&e.PriceBefore,
			&e.PriceNext,
			&tick,
			&e.Owner,
			&e.Amount0,
			&e.Amount1,
			&tickLower,
			&tickUpper,
			&e.Liquidity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Timestamp = ts.UTC()
		e.Tick = int(tick)
		e.TickLower = int(tickLower)
		e.TickUpper = int(tickUpper)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// SQL ordering approximates the replay order; settle ties exactly.
	replay.SortEvents(events)
	return events, nil
}
