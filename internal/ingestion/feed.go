package ingestion

import (
	"context"
	"errors"
	"log"
	"sync"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/normalization"
	"amm-strategy-lab/internal/storage"
)

// EventSink receives normalized live events.
type EventSink interface {
	Append(ctx context.Context, pool string, events []*domain.Event) error
}

// StoreSink adapts an EventStore to the EventSink interface, dropping
// duplicate rows silently (reconnects redeliver recent logs).
type StoreSink struct {
	Store storage.EventStore
}

// Compile-time interface check.
var _ EventSink = (*StoreSink)(nil)

func (s *StoreSink) Append(ctx context.Context, pool string, events []*domain.Event) error {
	err := s.Store.InsertBulk(ctx, pool, events)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// Feed subscribes to a pool's swap, mint and burn logs over websocket and
// streams normalized events to a sink.
type Feed struct {
	ws     ethereum.WSClient
	rpc    ethereum.RPCClient // optional, resolves block timestamps
	pool   *domain.Pool
	norm   *normalization.Normalizer
	sink   EventSink
	logger *log.Logger

	timer     *blockTimer
	lastPrice float64
}

// FeedOptions contains configuration for creating a Feed.
type FeedOptions struct {
	WS     ethereum.WSClient
	RPC    ethereum.RPCClient
	Pool   *domain.Pool
	Sink   EventSink
	Logger *log.Logger
}

// NewFeed creates a live pool event feed.
func NewFeed(opts FeedOptions) *Feed {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Feed{
		ws:     opts.WS,
		rpc:    opts.RPC,
		pool:   opts.Pool,
		norm:   normalization.NewNormalizer(opts.Pool),
		sink:   opts.Sink,
		logger: logger,
		timer:  newBlockTimer(opts.RPC),
	}
}

// Run subscribes and processes logs until the context is cancelled or the
// client closes. Logs arrive per topic; some providers reject multi-topic
// filters, so each event type gets its own subscription.
func (f *Feed) Run(ctx context.Context) error {
	topics := []string{ethereum.TopicSwap, ethereum.TopicMint, ethereum.TopicBurn}

	merged := make(chan ethereum.Log, 1000)
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, err := f.ws.SubscribeLogs(ctx, ethereum.LogFilter{
			Address: f.pool.Address,
			Topics:  []string{topic},
		})
		if err != nil {
			return err
		}
		f.logger.Printf("[feed] subscribed to %s topic %s", f.pool.Address, topic[:10])

		wg.Add(1)
		go func(ch <-chan ethereum.Log) {
			defer wg.Done()
			for l := range ch {
				select {
				case merged <- l:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-merged:
			if !ok {
				f.logger.Printf("[feed] subscriptions closed")
				return nil
			}
			f.process(ctx, l)
		}
	}
}

// process decodes one log and hands the event to the sink.
func (f *Feed) process(ctx context.Context, l ethereum.Log) {
	if l.Removed || len(l.Topics) == 0 {
		return
	}
	blockTime := f.timer.timeFor(ctx, l.BlockNumber)

	var (
		events []*domain.Event
		err    error
	)
	switch l.Topics[0] {
	case ethereum.TopicSwap:
		var s normalization.RawSwap
		if s, err = DecodeSwapLog(l, blockTime); err == nil {
			events, err = f.norm.NormalizeSwaps([]normalization.RawSwap{s})
		}
	case ethereum.TopicMint:
		m, derr := DecodeMintLog(l, blockTime)
		err = derr
		if err == nil {
			events = f.norm.NormalizeMints([]normalization.RawMint{m})
		}
	case ethereum.TopicBurn:
		b, derr := DecodeBurnLog(l, blockTime)
		err = derr
		if err == nil {
			events = f.norm.NormalizeBurns([]normalization.RawBurn{b})
		}
	default:
		return
	}
	if err != nil {
		f.logger.Printf("[feed] decode %s: %v", l.TxHash, err)
		return
	}

	// Fill prices from the last seen swap; a mint or burn before the first
	// swap goes out unpriced, exactly like a leading gap in a merged series.
	for _, e := range events {
		if e.Kind == domain.EventSwap {
			f.lastPrice = e.Price
		} else if f.lastPrice > 0 {
			e.Price = f.lastPrice
			e.PriceBefore = f.lastPrice
			e.PriceNext = f.lastPrice
		}
	}

	if len(events) == 0 {
		return
	}
	if err := f.sink.Append(ctx, f.pool.Address, events); err != nil {
		f.logger.Printf("[feed] sink append %s: %v", l.TxHash, err)
	}
}
