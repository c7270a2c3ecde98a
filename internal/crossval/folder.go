// Package crossval runs independent backtests over disjoint folds of one
// event series. Folds share nothing: each gets its own strategy copy,
// portfolio and engine, so a bad fold cannot corrupt its siblings.
package crossval

import (
	"errors"
	"fmt"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/lookup"
)

// ErrEmptyFold marks a fold that contains zero events. Such folds are
// skipped with a warning, never scored as zero.
var ErrEmptyFold = errors.New("fold contains no events")

// FoldSpan is one contiguous slice of the event series. The time range is
// half-open [From, To).
type FoldSpan struct {
	Index  int
	From   time.Time
	To     time.Time
	Events []*domain.Event
}

// SplitByCount splits events into n equal contiguous folds by index. The
// last fold absorbs the remainder. Events must already be in replay order.
func SplitByCount(events []*domain.Event, n int) ([]FoldSpan, error) {
	if n <= 0 {
		return nil, fmt.Errorf("fold count must be positive, got %d", n)
	}
	if len(events) == 0 {
		return nil, nil
	}

	foldLen := len(events) / n
	if foldLen == 0 {
		foldLen = 1
	}

	var folds []FoldSpan
	for i := 0; i < n; i++ {
		start := i * foldLen
		if start >= len(events) {
			break
		}
		end := start + foldLen
		if i == n-1 || end > len(events) {
			end = len(events)
		}
		slice := events[start:end]
		folds = append(folds, FoldSpan{
			Index:  i,
			From:   slice[0].Timestamp,
			To:     spanEnd(events, end),
			Events: slice,
		})
	}
	return folds, nil
}

// SplitByDuration splits events into time windows of the given length,
// advancing by step. A step of zero means non-overlapping windows. Windows
// that contain no events still appear in the result, marked by their range.
func SplitByDuration(events []*domain.Event, window, step time.Duration) ([]FoldSpan, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	if step <= 0 {
		step = window
	}
	if len(events) == 0 {
		return nil, nil
	}

	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp

	series := lookup.NewSeries(events)
	var folds []FoldSpan
	for i, start := 0, first; !start.After(last); i, start = i+1, start.Add(step) {
		end := start.Add(window)
		folds = append(folds, FoldSpan{Index: i, From: start, To: end, Events: series.Range(start, end)})
	}
	return folds, nil
}

// SplitByBlocks splits events into block-number windows of the given size,
// advancing by step. Events without block data never match a block window.
func SplitByBlocks(events []*domain.Event, window, step int64) ([]FoldSpan, error) {
	if window <= 0 {
		return nil, fmt.Errorf("block window must be positive, got %d", window)
	}
	if step <= 0 {
		step = window
	}
	if len(events) == 0 {
		return nil, nil
	}

	var firstBlock, lastBlock int64
	for _, e := range events {
		if !e.HasBlock() {
			continue
		}
		if firstBlock == 0 || e.BlockNumber < firstBlock {
			firstBlock = e.BlockNumber
		}
		if e.BlockNumber > lastBlock {
			lastBlock = e.BlockNumber
		}
	}
	if firstBlock == 0 {
		return nil, fmt.Errorf("event series has no block data")
	}

	var folds []FoldSpan
	for i, start := 0, firstBlock; start <= lastBlock; i, start = i+1, start+step {
		end := start + window
		var slice []*domain.Event
		for _, e := range events {
			if e.HasBlock() && e.BlockNumber >= start && e.BlockNumber < end {
				slice = append(slice, e)
			}
		}
		span := FoldSpan{Index: i, Events: slice}
		if len(slice) > 0 {
			span.From = slice[0].Timestamp
			span.To = slice[len(slice)-1].Timestamp.Add(time.Nanosecond)
		}
		folds = append(folds, span)
	}
	return folds, nil
}

// spanEnd gives the exclusive end of a fold slicing events at index end.
func spanEnd(events []*domain.Event, end int) time.Time {
	if end < len(events) {
		return events[end].Timestamp
	}
	return events[len(events)-1].Timestamp.Add(time.Nanosecond)
}
