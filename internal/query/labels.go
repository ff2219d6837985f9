package query

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bullbot/history/pkg/types"
)

// DefaultWaffleLimit is the add/remove count at which a label is waffling.
const DefaultWaffleLimit = 20

// LabelLastApplied returns when label was most recently added.
func (ix *Index) LabelLastApplied(label string) (time.Time, bool) {
	return ix.lastLabelEvent(types.KindLabeled, label)
}

// LabelLastRemoved returns when label was most recently removed.
func (ix *Index) LabelLastRemoved(label string) (time.Time, bool) {
	return ix.lastLabelEvent(types.KindUnlabeled, label)
}

func (ix *Index) lastLabelEvent(kind types.EventKind, label string) (time.Time, bool) {
	for i := len(ix.events) - 1; i >= 0; i-- {
		e := &ix.events[i]
		if e.Kind == kind && e.Label == label {
			return e.CreatedAt, true
		}
	}
	return time.Time{}, false
}

// WasLabeled reports whether label was ever added by an actor outside
// excludeActors. An empty label matches any label.
func (ix *Index) WasLabeled(label string, excludeActors []string) bool {
	return ix.hasLabelEvent(types.KindLabeled, label, excludeActors)
}

// WasUnlabeled reports whether label was ever removed by an actor outside
// excludeActors. An empty label matches any label.
func (ix *Index) WasUnlabeled(label string, excludeActors []string) bool {
	return ix.hasLabelEvent(types.KindUnlabeled, label, excludeActors)
}

func (ix *Index) hasLabelEvent(kind types.EventKind, label string, excludeActors []string) bool {
	for i := range ix.events {
		e := &ix.events[i]
		if slices.Contains(excludeActors, e.Actor) {
			continue
		}
		if e.Kind == kind && (label == "" || e.Label == label) {
			return true
		}
	}
	return false
}

// ChangedLabels returns the sorted set of labels ever added or removed by
// actors outside excludeActors, limited to names starting with prefix.
func (ix *Index) ChangedLabels(prefix string, excludeActors []string) []string {
	seen := make(map[string]struct{})
	for i := range ix.events {
		e := &ix.events[i]
		if !e.Kind.IsLabelChange() || slices.Contains(excludeActors, e.Actor) {
			continue
		}
		if strings.HasPrefix(e.Label, prefix) {
			seen[e.Label] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// LabelIsWaffling reports whether label was added or removed at least
// limit times. A limit of zero or less means "unset" and uses
// DefaultWaffleLimit; it does not make every label waffle.
//
// Per-label counts are computed once and reused until the timeline is
// replaced.
func (ix *Index) LabelIsWaffling(label string, limit int) bool {
	if limit <= 0 {
		limit = DefaultWaffleLimit
	}
	return ix.labelChurn()[label] >= limit
}

func (ix *Index) labelChurn() map[string]int {
	if ix.waffleCounts != nil && ix.waffleGen == ix.generation {
		return ix.waffleCounts
	}
	counts := make(map[string]int)
	for i := range ix.events {
		if ix.events[i].Kind.IsLabelChange() {
			counts[ix.events[i].Label]++
		}
	}
	ix.waffleCounts = counts
	ix.waffleGen = ix.generation
	return counts
}
