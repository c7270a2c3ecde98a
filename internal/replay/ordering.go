package replay

import (
	"fmt"
	"sort"

	"amm-strategy-lab/internal/domain"
)

// SortEvents orders events in place into the canonical replay order.
// This provides deterministic ordering based on chain order: events carrying
// block data sort by (block_number ASC, log_index ASC), otherwise by
// timestamp. Kind and owner are tie-breakers so merged streams replay
// identically regardless of input order.
func SortEvents(events []*domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return CompareEvents(events[i], events[j]) < 0
	})
}

// MergeEvents combines several event streams into one sorted stream.
func MergeEvents(streams ...[]*domain.Event) []*domain.Event {
	var total int
	for _, s := range streams {
		total += len(s)
	}
	merged := make([]*domain.Event, 0, total)
	for _, s := range streams {
		merged = append(merged, s...)
	}
	SortEvents(merged)
	return merged
}

// ValidateOrdering checks that events already follow the canonical replay
// order, returning ErrOutOfOrder at the first violation.
func ValidateOrdering(events []*domain.Event) error {
	for i := 1; i < len(events); i++ {
		if CompareEvents(events[i-1], events[i]) > 0 {
			return fmt.Errorf("%w: event %d precedes event %d", ErrOutOfOrder, i, i-1)
		}
	}
	return nil
}

// CompareEvents returns:
//   - negative if a replays before b
//   - zero if the order between them is immaterial
//   - positive if a replays after b
//
// Block order (block_number, log_index) applies only when both events carry
// it; a mixed or blockless pair falls back to timestamps.
func CompareEvents(a, b *domain.Event) int {
	if a.HasBlock() && b.HasBlock() {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		if a.LogIndex != b.LogIndex {
			if a.LogIndex < b.LogIndex {
				return -1
			}
			return 1
		}
	} else if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.Owner != b.Owner {
		if a.Owner < b.Owner {
			return -1
		}
		return 1
	}
	return 0
}
