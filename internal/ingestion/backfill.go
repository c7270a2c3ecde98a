package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/normalization"
	"amm-strategy-lab/internal/storage"
)

// DefaultBlockBatch is the number of blocks fetched per eth_getLogs call.
// Public providers cap the response size, so ranges are chunked.
const DefaultBlockBatch = 2000

// Backfiller loads historical pool events from JSON-RPC logs into storage.
type Backfiller struct {
	rpc        ethereum.RPCClient
	store      storage.EventStore
	pool       *domain.Pool
	norm       *normalization.Normalizer
	blockBatch int64
	logger     *log.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC        ethereum.RPCClient
	Store      storage.EventStore
	Pool       *domain.Pool
	BlockBatch int64
	Logger     *log.Logger
}

// NewBackfiller creates a new historical log backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	blockBatch := opts.BlockBatch
	if blockBatch <= 0 {
		blockBatch = DefaultBlockBatch
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Backfiller{
		rpc:        opts.RPC,
		store:      opts.Store,
		pool:       opts.Pool,
		norm:       normalization.NewNormalizer(opts.Pool),
		blockBatch: blockBatch,
		logger:     logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	LogsFetched       int
	EventsIngested    int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// BackfillLatest backfills the most recent n blocks up to the chain head.
func (b *Backfiller) BackfillLatest(ctx context.Context, blocks int64) (*BackfillResult, error) {
	head, err := b.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain head: %w", err)
	}
	from := head - blocks + 1
	if from < 1 {
		from = 1
	}
	return b.BackfillBlockRange(ctx, from, head)
}

// BackfillBlockRange backfills pool events for the block range [from, to],
// chunked by the configured batch size.
func (b *Backfiller) BackfillBlockRange(ctx context.Context, from, to int64) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Printf("[backfill] pool %s blocks %d..%d", b.pool.Address, from, to)

	for chunkFrom := from; chunkFrom <= to; chunkFrom += b.blockBatch {
		chunkTo := chunkFrom + b.blockBatch - 1
		if chunkTo > to {
			chunkTo = to
		}

		logs, err := b.rpc.GetLogs(ctx, ethereum.LogFilter{
			Address:   b.pool.Address,
			FromBlock: chunkFrom,
			ToBlock:   chunkTo,
		})
		if err != nil {
			return result, fmt.Errorf("get logs %d..%d: %w", chunkFrom, chunkTo, err)
		}
		result.LogsFetched += len(logs)

		events, errs := b.decodeChunk(ctx, logs)
		result.Errors += errs
		if len(events) == 0 {
			continue
		}

		stored, dupes, errs := b.storeEvents(ctx, events)
		result.EventsIngested += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs
	}

	result.Duration = time.Since(start)
	b.logger.Printf("[backfill] complete: %d logs, %d events, %d dupes, %d errors in %v",
		result.LogsFetched, result.EventsIngested, result.DuplicatesSkipped,
		result.Errors, result.Duration)
	return result, nil
}

// decodeChunk turns one batch of logs into a merged, replay-ordered event
// series. Undecodable logs are counted and skipped, not fatal.
func (b *Backfiller) decodeChunk(ctx context.Context, logs []ethereum.Log) ([]*domain.Event, int) {
	timer := newBlockTimer(b.rpc)
	var (
		swaps []normalization.RawSwap
		mints []normalization.RawMint
		burns []normalization.RawBurn
		errs  int
	)
	for _, l := range logs {
		if l.Removed || len(l.Topics) == 0 {
			continue
		}
		blockTime := timer.timeFor(ctx, l.BlockNumber)
		switch l.Topics[0] {
		case ethereum.TopicSwap:
			s, err := DecodeSwapLog(l, blockTime)
			if err != nil {
				b.logger.Printf("[backfill] %v", err)
				errs++
				continue
			}
			swaps = append(swaps, s)
		case ethereum.TopicMint:
			m, err := DecodeMintLog(l, blockTime)
			if err != nil {
				b.logger.Printf("[backfill] %v", err)
				errs++
				continue
			}
			mints = append(mints, m)
		case ethereum.TopicBurn:
			bu, err := DecodeBurnLog(l, blockTime)
			if err != nil {
				b.logger.Printf("[backfill] %v", err)
				errs++
				continue
			}
			burns = append(burns, bu)
		}
	}

	swapEvents, err := b.norm.NormalizeSwaps(swaps)
	if err != nil {
		b.logger.Printf("[backfill] normalize swaps: %v", err)
		return nil, errs + len(swaps)
	}
	return b.norm.Merge(
		swapEvents,
		b.norm.NormalizeMints(mints),
		b.norm.NormalizeBurns(burns),
	), errs
}

// storeEvents inserts a chunk, falling back to one-by-one inserts when the
// bulk insert hits a duplicate so the rest of the chunk still lands.
func (b *Backfiller) storeEvents(ctx context.Context, events []*domain.Event) (stored, dupes, errs int) {
	err := b.store.InsertBulk(ctx, b.pool.Address, events)
	if err == nil {
		return len(events), 0, 0
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		b.logger.Printf("[backfill] store chunk: %v", err)
		return 0, 0, len(events)
	}

	for _, e := range events {
		switch err := b.store.InsertBulk(ctx, b.pool.Address, []*domain.Event{e}); {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
			dupes++
		default:
			errs++
		}
	}
	return stored, dupes, errs
}
