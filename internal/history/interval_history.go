package history

import (
	"sort"
	"time"
)

// IntervalRecord is one AMM position's price interval and liquidity at one
// event tick.
type IntervalRecord struct {
	Timestamp  time.Time
	Name       string
	LowerPrice float64
	UpperPrice float64
	Liquidity  float64
}

// PositionIntervalHistory tracks the bounds and liquidity of every
// concentrated liquidity position over time, one record per position per
// event.
type PositionIntervalHistory struct {
	records []IntervalRecord
}

// NewPositionIntervalHistory returns an empty history.
func NewPositionIntervalHistory() *PositionIntervalHistory {
	return &PositionIntervalHistory{}
}

// Append records one position's interval state at ts.
func (h *PositionIntervalHistory) Append(ts time.Time, name string, lower, upper, liquidity float64) {
	h.records = append(h.records, IntervalRecord{
		Timestamp:  ts,
		Name:       name,
		LowerPrice: lower,
		UpperPrice: upper,
		Liquidity:  liquidity,
	})
}

// Len returns the number of recorded intervals.
func (h *PositionIntervalHistory) Len() int {
	return len(h.records)
}

// ToTable returns the records ordered by (timestamp, name).
func (h *PositionIntervalHistory) ToTable() []IntervalRecord {
	out := make([]IntervalRecord, len(h.records))
	copy(out, h.records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
