package history

import (
	"testing"
	"time"
)

func TestActionHistoryToTableDropsNoActionTicks(t *testing.T) {
	h := NewActionHistory()
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	h.Append(t0, "")
	h.Append(t0.Add(time.Minute), "mint")
	h.Append(t0.Add(2*time.Minute), "")
	h.Append(t0.Add(3*time.Minute), "rebalance")

	if h.Len() != 4 {
		t.Fatalf("got len %d, want 4", h.Len())
	}
	if got := len(h.Records()); got != 4 {
		t.Fatalf("got %d records, want 4", got)
	}

	table := h.ToTable()
	if len(table) != 2 {
		t.Fatalf("got %d rows, want 2", len(table))
	}
	if table[0].Action != "mint" || table[1].Action != "rebalance" {
		t.Fatalf("got actions (%q, %q), want (mint, rebalance)", table[0].Action, table[1].Action)
	}
}

func TestActionHistoryToTableSortsByTimestamp(t *testing.T) {
	h := NewActionHistory()
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	h.Append(t0.Add(time.Hour), "burn")
	h.Append(t0, "mint")

	table := h.ToTable()
	if !table[0].Timestamp.Equal(t0) || table[0].Action != "mint" {
		t.Fatalf("got first row %+v, want mint at t0", table[0])
	}
}
