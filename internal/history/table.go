// Package history accumulates per-event state of a backtest run and derives
// portfolio statistics from it. The three stores are append-only: the engine
// appends one record per replayed event, analytics run afterwards over the
// completed series.
package history

import (
	"math"
	"time"
)

// Table is an ordered, column-major series of float64 columns keyed by
// timestamp. Column order is first-seen and rows keep append order, so two
// identical runs render byte-identical tables. Cells a row never set hold
// NaN, which the stats pass treats as missing rather than zero.
type Table struct {
	timestamps []time.Time
	order      []string
	columns    map[string][]float64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{columns: make(map[string][]float64)}
}

// appendRow adds one row at ts. Keys seen for the first time open a new
// column back-filled with NaN; existing columns absent from keys get NaN for
// this row.
func (t *Table) appendRow(ts time.Time, keys []string, values map[string]float64) {
	row := len(t.timestamps)
	t.timestamps = append(t.timestamps, ts)
	for _, name := range t.order {
		t.columns[name] = append(t.columns[name], math.NaN())
	}
	for _, k := range keys {
		col, ok := t.columns[k]
		if !ok {
			col = make([]float64, row+1)
			for i := range col {
				col[i] = math.NaN()
			}
			t.order = append(t.order, k)
		}
		col[row] = values[k]
		t.columns[k] = col
	}
}

// setColumn installs a complete column. The column must match the current
// row count; first-time names extend the column order.
func (t *Table) setColumn(name string, values []float64) {
	if _, ok := t.columns[name]; !ok {
		t.order = append(t.order, name)
	}
	t.columns[name] = values
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.timestamps)
}

// Timestamps returns the row keys in order.
func (t *Table) Timestamps() []time.Time {
	out := make([]time.Time, len(t.timestamps))
	copy(out, t.timestamps)
	return out
}

// Columns returns the column names in deterministic first-seen order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Column returns a copy of the named column, or nil when no such column
// exists. Missing cells are NaN.
func (t *Table) Column(name string) []float64 {
	col, ok := t.columns[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out
}

// Rows returns the table row-major, each row aligned with Columns().
func (t *Table) Rows() [][]float64 {
	rows := make([][]float64, len(t.timestamps))
	for i := range rows {
		row := make([]float64, len(t.order))
		for j, name := range t.order {
			row[j] = t.columns[name][i]
		}
		rows[i] = row
	}
	return rows
}
