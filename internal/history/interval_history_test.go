package history

import (
	"testing"
	"time"
)

func TestPositionIntervalHistoryToTableOrder(t *testing.T) {
	h := NewPositionIntervalHistory()
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	h.Append(t1, "pos_b", 90, 110, 40)
	h.Append(t0, "pos_z", 100, 120, 30)
	h.Append(t0, "pos_a", 80, 100, 20)

	table := h.ToTable()
	if h.Len() != 3 || len(table) != 3 {
		t.Fatalf("got %d rows, want 3", len(table))
	}

	want := []struct {
		ts   time.Time
		name string
	}{
		{t0, "pos_a"},
		{t0, "pos_z"},
		{t1, "pos_b"},
	}
	for i, w := range want {
		if !table[i].Timestamp.Equal(w.ts) || table[i].Name != w.name {
			t.Fatalf("row %d: got (%v, %s), want (%v, %s)",
				i, table[i].Timestamp, table[i].Name, w.ts, w.name)
		}
	}
	if table[0].LowerPrice != 80 || table[0].UpperPrice != 100 || table[0].Liquidity != 20 {
		t.Fatalf("row 0 fields: got %+v", table[0])
	}
}
