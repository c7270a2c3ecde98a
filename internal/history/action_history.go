package history

import (
	"sort"
	"time"
)

// ActionRecord is one strategy decision at one event tick. An empty Action
// means the strategy did nothing on that tick.
type ActionRecord struct {
	Timestamp time.Time
	Action    string
}

// ActionHistory tracks the action tag returned by the strategy on every
// event, including no-action ticks. Filtering happens at render time so the
// raw series keeps one record per event.
type ActionHistory struct {
	records []ActionRecord
}

// NewActionHistory returns an empty history.
func NewActionHistory() *ActionHistory {
	return &ActionHistory{}
}

// Append records the action taken at ts.
func (h *ActionHistory) Append(ts time.Time, action string) {
	h.records = append(h.records, ActionRecord{Timestamp: ts, Action: action})
}

// Len returns the number of recorded ticks, no-action ticks included.
func (h *ActionHistory) Len() int {
	return len(h.records)
}

// Records returns every recorded tick in append order.
func (h *ActionHistory) Records() []ActionRecord {
	out := make([]ActionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// ToTable returns the actions sorted by timestamp with no-action ticks
// dropped.
func (h *ActionHistory) ToTable() []ActionRecord {
	out := make([]ActionRecord, 0, len(h.records))
	for _, r := range h.records {
		if r.Action == "" {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
