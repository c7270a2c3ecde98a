// Package lookup provides binary-search lookup over an ordered event
// series. Fold boundary resolution and gap filling use it to answer "what
// was the state at time t" questions without scanning.
package lookup

import (
	"errors"
	"sort"
	"time"

	"amm-strategy-lab/internal/domain"
)

// Lookup errors.
var (
	// ErrEmptySeries is returned when the series holds no events.
	ErrEmptySeries = errors.New("empty series")

	// ErrBeforeSeries is returned when the target time precedes the first
	// event, so no as-of value exists.
	ErrBeforeSeries = errors.New("target precedes the series")
)

// Series is an immutable timestamp-ordered view over events. The
// constructor copies and sorts, so the caller's slice may be in any order.
type Series struct {
	events []*domain.Event
}

// NewSeries builds a series from events.
func NewSeries(events []*domain.Event) *Series {
	ordered := make([]*domain.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return &Series{events: ordered}
}

// Len returns the number of events in the series.
func (s *Series) Len() int { return len(s.events) }

// AsOf returns the latest event at or before target (forward-fill
// semantics).
func (s *Series) AsOf(target time.Time) (*domain.Event, error) {
	if len(s.events) == 0 {
		return nil, ErrEmptySeries
	}
	// First index strictly after target.
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Timestamp.After(target)
	})
	if idx == 0 {
		return nil, ErrBeforeSeries
	}
	return s.events[idx-1], nil
}

// PriceAsOf returns the last known price at or before target.
func (s *Series) PriceAsOf(target time.Time) (float64, error) {
	e, err := s.AsOf(target)
	if err != nil {
		return 0, err
	}
	return e.Price, nil
}

// At returns the first event exactly at target, or ErrNotFound-style nil
// with ok=false when no event carries that timestamp.
func (s *Series) At(target time.Time) (*domain.Event, bool) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].Timestamp.Before(target)
	})
	if idx == len(s.events) || !s.events[idx].Timestamp.Equal(target) {
		return nil, false
	}
	return s.events[idx], true
}

// Range returns the events with from <= timestamp < to, sharing the series'
// backing order.
func (s *Series) Range(from, to time.Time) []*domain.Event {
	lo := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].Timestamp.Before(to)
	})
	return s.events[lo:hi]
}
