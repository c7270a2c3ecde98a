package history

import (
	"errors"
	"sort"

	"amm-strategy-lab/internal/domain"
)

// ErrEmptyHistory is returned when stats are requested before any snapshot
// was appended.
var ErrEmptyHistory = errors.New("history: no snapshots appended")

// PortfolioHistory accumulates portfolio valuation snapshots, one per
// replayed event, and derives time series statistics from them.
type PortfolioHistory struct {
	snapshots []*domain.Snapshot
}

// NewPortfolioHistory returns an empty history.
func NewPortfolioHistory() *PortfolioHistory {
	return &PortfolioHistory{}
}

// Append records one snapshot. Nil and field-less snapshots are skipped so
// that an empty portfolio tick does not produce an all-NaN row.
func (h *PortfolioHistory) Append(s *domain.Snapshot) {
	if s == nil || s.Len() == 0 {
		return
	}
	h.snapshots = append(h.snapshots, s)
}

// Len returns the number of recorded snapshots.
func (h *PortfolioHistory) Len() int {
	return len(h.snapshots)
}

// ToTable renders the snapshots as a table sorted by timestamp, one row per
// snapshot. The price at each tick becomes the leading "price" column;
// position fields follow in snapshot key order.
func (h *PortfolioHistory) ToTable() *Table {
	ordered := make([]*domain.Snapshot, len(h.snapshots))
	copy(ordered, h.snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	t := NewTable()
	for _, s := range ordered {
		keys := append([]string{"price"}, s.Keys()...)
		values := make(map[string]float64, len(keys))
		values["price"] = s.Price
		for _, k := range s.Keys() {
			v, _ := s.Get(k)
			values[k] = v
		}
		t.appendRow(s.Timestamp, keys, values)
	}
	return t
}
