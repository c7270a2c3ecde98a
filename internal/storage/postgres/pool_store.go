package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Insert adds a new pool. Returns ErrDuplicateKey if the address exists.
func (s *PoolStore) Insert(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO pools (
			address, token0_symbol, token0_address, token0_decimals,
			token1_symbol, token1_address, token1_decimals, fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		p.Address,
		p.Token0.Symbol,
		p.Token0.Address,
		p.Token0.Decimals,
		p.Token1.Symbol,
		p.Token1.Address,
		p.Token1.Decimals,
		int(p.Fee),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// GetByAddress retrieves a pool by its address. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByAddress(ctx context.Context, address string) (*domain.Pool, error) {
	query := `
		SELECT address, token0_symbol, token0_address, token0_decimals,
		       token1_symbol, token1_address, token1_decimals, fee
		FROM pools
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by address: %w", err)
	}
	return p, nil
}

// GetAll retrieves every known pool, ordered by address.
func (s *PoolStore) GetAll(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT address, token0_symbol, token0_address, token0_decimals,
		       token1_symbol, token1_address, token1_decimals, fee
		FROM pools
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var fee int
	err := row.Scan(
		&p.Address,
		&p.Token0.Symbol,
		&p.Token0.Address,
		&p.Token0.Decimals,
		&p.Token1.Symbol,
		&p.Token1.Address,
		&p.Token1.Decimals,
		&fee,
	)
	if err != nil {
		return nil, err
	}
	p.Fee = domain.Fee(fee)
	return &p, nil
}
