// Package ingestion loads pool event data into the lab: historical CSV
// exports, synthetic price series, JSON-RPC log backfills and a live
// websocket feed. Everything funnels through the normalization layer so
// every path produces the same replay-ordered event series.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/normalization"
)

// CSV file names inside a pool data directory.
const (
	MintFile = "mint.csv"
	BurnFile = "burn.csv"
	SwapFile = "swap.csv"
)

// csvRow gives name-based access to one CSV record.
type csvRow struct {
	index map[string]int
	rec   []string
	line  int
}

func (r csvRow) str(col string) (string, error) {
	i, ok := r.index[col]
	if !ok {
		return "", fmt.Errorf("line %d: missing column %q", r.line, col)
	}
	return r.rec[i], nil
}

func (r csvRow) int64(col string) (int64, error) {
	s, err := r.str(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %q: %w", r.line, col, err)
	}
	return v, nil
}

func (r csvRow) float(col string) (float64, error) {
	s, err := r.str(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %q: %w", r.line, col, err)
	}
	return v, nil
}

// readRows parses a CSV stream and yields rows whose "pool" column matches
// the given address. Column order is header-driven.
func readRows(r io.Reader, pool string, fn func(csvRow) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line++

		row := csvRow{index: index, rec: rec, line: line}
		if pool != "" {
			p, err := row.str("pool")
			if err != nil {
				return err
			}
			if p != pool {
				continue
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// ReadMintsCSV parses mint rows for one pool from an exported CSV stream.
func ReadMintsCSV(r io.Reader, pool string) ([]normalization.RawMint, error) {
	var rows []normalization.RawMint
	err := readRows(r, pool, func(row csvRow) error {
		var m normalization.RawMint
		var err error
		if m.TxHash, err = row.str("tx_hash"); err != nil {
			return err
		}
		if m.Owner, err = row.str("owner"); err != nil {
			return err
		}
		if m.BlockNumber, err = row.int64("block_number"); err != nil {
			return err
		}
		if m.LogIndex, err = row.int64("log_index"); err != nil {
			return err
		}
		if m.BlockTime, err = row.int64("block_time"); err != nil {
			return err
		}
		tl, err := row.int64("tick_lower")
		if err != nil {
			return err
		}
		tu, err := row.int64("tick_upper")
		if err != nil {
			return err
		}
		m.TickLower, m.TickUpper = int(tl), int(tu)
		if m.Amount, err = row.float("amount"); err != nil {
			return err
		}
		if m.Amount0, err = row.float("amount0"); err != nil {
			return err
		}
		if m.Amount1, err = row.float("amount1"); err != nil {
			return err
		}
		rows = append(rows, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadBurnsCSV parses burn rows for one pool from an exported CSV stream.
func ReadBurnsCSV(r io.Reader, pool string) ([]normalization.RawBurn, error) {
	var rows []normalization.RawBurn
	err := readRows(r, pool, func(row csvRow) error {
		var b normalization.RawBurn
		var err error
		if b.TxHash, err = row.str("tx_hash"); err != nil {
			return err
		}
		if b.Owner, err = row.str("owner"); err != nil {
			return err
		}
		if b.BlockNumber, err = row.int64("block_number"); err != nil {
			return err
		}
		if b.LogIndex, err = row.int64("log_index"); err != nil {
			return err
		}
		if b.BlockTime, err = row.int64("block_time"); err != nil {
			return err
		}
		tl, err := row.int64("tick_lower")
		if err != nil {
			return err
		}
		tu, err := row.int64("tick_upper")
		if err != nil {
			return err
		}
		b.TickLower, b.TickUpper = int(tl), int(tu)
		if b.Amount, err = row.float("amount"); err != nil {
			return err
		}
		if b.Amount0, err = row.float("amount0"); err != nil {
			return err
		}
		if b.Amount1, err = row.float("amount1"); err != nil {
			return err
		}
		rows = append(rows, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadSwapsCSV parses swap rows for one pool from an exported CSV stream.
// Swap exports name the originating account "sender".
func ReadSwapsCSV(r io.Reader, pool string) ([]normalization.RawSwap, error) {
	var rows []normalization.RawSwap
	err := readRows(r, pool, func(row csvRow) error {
		var s normalization.RawSwap
		var err error
		if s.TxHash, err = row.str("tx_hash"); err != nil {
			return err
		}
		if s.Owner, err = row.str("sender"); err != nil {
			return err
		}
		if s.BlockNumber, err = row.int64("block_number"); err != nil {
			return err
		}
		if s.LogIndex, err = row.int64("log_index"); err != nil {
			return err
		}
		if s.BlockTime, err = row.int64("block_time"); err != nil {
			return err
		}
		tick, err := row.int64("tick")
		if err != nil {
			return err
		}
		s.Tick = int(tick)
		if s.Liquidity, err = row.float("liquidity"); err != nil {
			return err
		}
		if s.Amount0, err = row.float("amount0"); err != nil {
			return err
		}
		if s.Amount1, err = row.float("amount1"); err != nil {
			return err
		}
		if s.SqrtPriceX96, err = row.str("sqrt_price_x96"); err != nil {
			return err
		}
		rows = append(rows, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadDir reads mint.csv, burn.csv and swap.csv from a data directory,
// normalizes the rows for the pool and returns the merged replay-ordered
// event series.
func LoadDir(dir string, pool *domain.Pool) ([]*domain.Event, error) {
	norm := normalization.NewNormalizer(pool)

	mintFile, err := os.Open(filepath.Join(dir, MintFile))
	if err != nil {
		return nil, err
	}
	defer mintFile.Close()
	mints, err := ReadMintsCSV(mintFile, pool.Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MintFile, err)
	}

	burnFile, err := os.Open(filepath.Join(dir, BurnFile))
	if err != nil {
		return nil, err
	}
	defer burnFile.Close()
	burns, err := ReadBurnsCSV(burnFile, pool.Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", BurnFile, err)
	}

	swapFile, err := os.Open(filepath.Join(dir, SwapFile))
	if err != nil {
		return nil, err
	}
	defer swapFile.Close()
	swaps, err := ReadSwapsCSV(swapFile, pool.Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SwapFile, err)
	}

	swapEvents, err := norm.NormalizeSwaps(swaps)
	if err != nil {
		return nil, err
	}
	return norm.Merge(
		swapEvents,
		norm.NormalizeMints(mints),
		norm.NormalizeBurns(burns),
	), nil
}
