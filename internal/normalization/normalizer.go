package normalization

import (
	"math"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/replay"
)

// dustThreshold drops burn rows whose combined scaled amounts round to
// nothing; these carry no liquidity information and only inflate the series.
const dustThreshold = 1e-6

// RawMint is one mint row as exported from the chain, amounts still in
// on-chain integer units.
type RawMint struct {
	TxHash      string
	Owner       string
	BlockNumber int64
	LogIndex    int64
	BlockTime   int64 // unix seconds
	TickLower   int
	TickUpper   int
	Amount      float64 // liquidity delta
	Amount0     float64
	Amount1     float64
}

// RawBurn mirrors RawMint for burn rows.
type RawBurn struct {
	TxHash      string
	Owner       string
	BlockNumber int64
	LogIndex    int64
	BlockTime   int64
	TickLower   int
	TickUpper   int
	Amount      float64
	Amount0     float64
	Amount1     float64
}

// RawSwap is one swap row, price still encoded as sqrtPriceX96.
type RawSwap struct {
	TxHash       string
	Owner        string
	BlockNumber  int64
	LogIndex     int64
	BlockTime    int64
	Tick         int
	Liquidity    float64
	Amount0      float64
	Amount1      float64
	SqrtPriceX96 string
}

// Normalizer scales raw rows into display units for one pool.
type Normalizer struct {
	pool *domain.Pool
}

// NewNormalizer returns a Normalizer for the given pool.
func NewNormalizer(pool *domain.Pool) *Normalizer {
	return &Normalizer{pool: pool}
}

// eventTime disambiguates events sharing a block timestamp by offsetting
// each one by its log index in milliseconds, keeping the replay order
// recoverable from timestamps alone.
func eventTime(blockTime, logIndex int64) time.Time {
	return time.Unix(blockTime, 0).UTC().Add(time.Duration(logIndex) * time.Millisecond)
}

func (n *Normalizer) scale0(v float64) float64 {
	return v / math.Pow(10, float64(n.pool.Token0.Decimals))
}

func (n *Normalizer) scale1(v float64) float64 {
	return v / math.Pow(10, float64(n.pool.Token1.Decimals))
}

func (n *Normalizer) scaleLiquidity(v float64) float64 {
	return v / math.Pow(10, n.pool.LiquidityDecimals())
}

func (n *Normalizer) adjustTick(tick int) int {
	return tick + TickDiff(n.pool.DecimalsDiff())
}

// NormalizeMints converts raw mint rows into events. Prices stay zero on
// mint events; the merge step fills them from neighbouring swaps.
func (n *Normalizer) NormalizeMints(rows []RawMint) []*domain.Event {
	events := make([]*domain.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, &domain.Event{
			Kind:        domain.EventMint,
			Timestamp:   eventTime(r.BlockTime, r.LogIndex),
			BlockNumber: r.BlockNumber,
			LogIndex:    r.LogIndex,
			Owner:       r.Owner,
			Amount0:     n.scale0(r.Amount0),
			Amount1:     n.scale1(r.Amount1),
			TickLower:   n.adjustTick(r.TickLower),
			TickUpper:   n.adjustTick(r.TickUpper),
			Liquidity:   n.scaleLiquidity(r.Amount),
		})
	}
	return events
}

// NormalizeBurns converts raw burn rows into events, dropping dust burns
// whose scaled amounts sum below the threshold.
func (n *Normalizer) NormalizeBurns(rows []RawBurn) []*domain.Event {
	events := make([]*domain.Event, 0, len(rows))
	for _, r := range rows {
		amount0 := n.scale0(r.Amount0)
		amount1 := n.scale1(r.Amount1)
		if amount0+amount1 <= dustThreshold {
			continue
		}
		events = append(events, &domain.Event{
			Kind:        domain.EventBurn,
			Timestamp:   eventTime(r.BlockTime, r.LogIndex),
			BlockNumber: r.BlockNumber,
			LogIndex:    r.LogIndex,
			Owner:       r.Owner,
			Amount0:     amount0,
			Amount1:     amount1,
			TickLower:   n.adjustTick(r.TickLower),
			TickUpper:   n.adjustTick(r.TickUpper),
			Liquidity:   n.scaleLiquidity(r.Amount),
		})
	}
	return events
}

// NormalizeSwaps converts raw swap rows into events, decoding the pool
// price from sqrtPriceX96 and filling the before/next price columns from
// the swap stream itself.
func (n *Normalizer) NormalizeSwaps(rows []RawSwap) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0, len(rows))
	for _, r := range rows {
		price, err := DecodeSqrtPriceX96(r.SqrtPriceX96, n.pool.DecimalsDiff())
		if err != nil {
			return nil, err
		}
		events = append(events, &domain.Event{
			Kind:        domain.EventSwap,
			Timestamp:   eventTime(r.BlockTime, r.LogIndex),
			BlockNumber: r.BlockNumber,
			LogIndex:    r.LogIndex,
			Price:       price,
			Tick:        n.adjustTick(r.Tick),
			Owner:       r.Owner,
			Amount0:     n.scale0(r.Amount0),
			Amount1:     n.scale1(r.Amount1),
			Liquidity:   n.scaleLiquidity(r.Liquidity),
		})
	}
	replay.SortEvents(events)

	// Shift-and-fill: price before a swap is the previous swap's price,
	// price next is the following swap's. Edges reuse the swap's own price.
	for i, e := range events {
		if i > 0 {
			e.PriceBefore = events[i-1].Price
		} else {
			e.PriceBefore = e.Price
		}
		if i < len(events)-1 {
			e.PriceNext = events[i+1].Price
		} else {
			e.PriceNext = e.Price
		}
	}
	return events, nil
}

// Merge interleaves normalized streams into one replay-ordered series and
// fills prices onto the events that lack them.
func (n *Normalizer) Merge(streams ...[]*domain.Event) []*domain.Event {
	merged := replay.MergeEvents(streams...)
	replay.ForwardFillPrices(merged)
	return merged
}
