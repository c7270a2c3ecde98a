package domain

import "time"

// EventKind identifies the on-chain origin of a market event.
type EventKind string

const (
	EventSwap EventKind = "swap"
	EventMint EventKind = "mint"
	EventBurn EventKind = "burn"
	// EventTick is a bare price observation with no on-chain payload,
	// used by synthetic series and resampled feeds.
	EventTick EventKind = "tick"
)

// Event is one record of the backtest input series.
// Events are totally ordered by (BlockNumber, LogIndex) when both carry
// block data, by Timestamp otherwise. The replay engine consumes them
// strictly in that order, one simulation tick per event.
type Event struct {
	Kind        EventKind // swap, mint, burn or tick
	Timestamp   time.Time // block timestamp (UTC)
	BlockNumber int64     // 0 when the series has no block data
	LogIndex    int64     // log position within the block

	Price       float64 // pool price (Y per X) after this event
	PriceBefore float64 // pool price before this event (swaps)
	PriceNext   float64 // pool price after the next event (swaps)
	Tick        int     // integer log-price encoding, ingestion only

	// Swap/mint/burn payload. Amounts are already scaled by token
	// decimals; Liquidity is the raw pool liquidity delta.
	Owner     string
	Amount0   float64
	Amount1   float64
	TickLower int
	TickUpper int
	Liquidity float64
}

// HasBlock reports whether the event carries block ordering data.
func (e *Event) HasBlock() bool {
	return e.BlockNumber > 0
}
