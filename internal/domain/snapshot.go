package domain

import "time"

// Snapshot is one immutable portfolio valuation taken at an event tick.
// Field keys keep insertion order so that history tables render their
// columns identically across runs; appending is the only mutation.
type Snapshot struct {
	Timestamp time.Time
	Price     float64

	keys   []string
	values map[string]float64
}

// NewSnapshot creates an empty snapshot at (timestamp, price).
func NewSnapshot(ts time.Time, price float64) *Snapshot {
	return &Snapshot{
		Timestamp: ts,
		Price:     price,
		values:    make(map[string]float64),
	}
}

// Set records a keyed value. First-time keys extend the column order;
// setting an existing key overwrites its value in place.
func (s *Snapshot) Set(key string, value float64) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value for key and whether it is present.
func (s *Snapshot) Get(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the field keys in insertion order.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keyed fields.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Merge appends every field of other, preserving other's key order.
// Duplicate keys overwrite, as later children shadow earlier ones.
func (s *Snapshot) Merge(other *Snapshot) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		s.Set(k, other.values[k])
	}
}
