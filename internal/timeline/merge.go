// Package timeline keeps a tracked item's events in chronological order.
package timeline

import (
	"sort"

	"github.com/bullbot/history/pkg/types"
)

// Merge returns a new timeline holding existing followed by incoming,
// stable-sorted ascending by CreatedAt. Equal timestamps keep insertion
// order, so existing events precede incoming ones at the same instant.
// Events are not deduplicated by ID.
func Merge(existing, incoming []types.Event) []types.Event {
	merged := make([]types.Event, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	Sort(merged)
	return merged
}

// Sort stable-sorts events in place by CreatedAt.
func Sort(events []types.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}

// IsSorted reports whether events are non-decreasing by CreatedAt.
func IsSorted(events []types.Event) bool {
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.Before(events[i-1].CreatedAt) {
			return false
		}
	}
	return true
}

// Clone copies a timeline so callers cannot mutate the original backing array.
func Clone(events []types.Event) []types.Event {
	if events == nil {
		return nil
	}
	out := make([]types.Event, len(events))
	copy(out, events)
	return out
}
