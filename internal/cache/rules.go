package cache

import (
	"slices"
	"time"

	"github.com/bullbot/history/pkg/types"
)

// Rule names reported by validation. RuleMissing marks a snapshot that
// could not be loaded at all.
const (
	RuleMissing           = "missing"
	RuleShape             = "shape"
	RuleSchemaVersion     = "schema_version"
	RuleFreshness         = "freshness"
	RuleCompletenessFloor = "completeness_floor"
	RuleNeedsInfoLabel    = "needs_info_label"
)

// NeedsInfoLabel is the label whose labeled event must survive in a snapshot.
const NeedsInfoLabel = "needs_info"

// ValidationContext is the current state of the tracked item that a
// snapshot is checked against.
type ValidationContext struct {
	// Labels are the currently applied label names
	Labels []string

	// LastUpdated is the item's current last-updated timestamp
	LastUpdated time.Time

	// SchemaVersion is the minimum acceptable snapshot version
	SchemaVersion float64
}

// Rule is one named validity check. Check returns true when the snapshot
// passes. Rules after the first failing one are not evaluated.
type Rule struct {
	Name  string
	Check func(snap *types.Snapshot, vc ValidationContext) bool
}

// Result is the outcome of validating a snapshot.
type Result struct {
	Valid bool

	// Rule names the first failing rule; empty when Valid
	Rule string
}

// DefaultRules returns the standard validation rules in evaluation order.
// The shape rule must stay first; the others assume a non-nil snapshot.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleShape, Check: checkShape},
		{Name: RuleSchemaVersion, Check: checkSchemaVersion},
		{Name: RuleFreshness, Check: checkFreshness},
		{Name: RuleCompletenessFloor, Check: checkCompletenessFloor},
		{Name: RuleNeedsInfoLabel, Check: checkNeedsInfoLabel},
	}
}

// Validate runs rules in order against snap.
func Validate(snap *types.Snapshot, vc ValidationContext, rules []Rule) Result {
	for _, rule := range rules {
		if !rule.Check(snap, vc) {
			return Result{Valid: false, Rule: rule.Name}
		}
	}
	return Result{Valid: true}
}

func checkShape(snap *types.Snapshot, _ ValidationContext) bool {
	return snap != nil && snap.History != nil && !snap.UpdatedAt.IsZero()
}

// A zero version (absent in the blob) is always behind.
func checkSchemaVersion(snap *types.Snapshot, vc ValidationContext) bool {
	return snap.Version > 0 && snap.Version >= vc.SchemaVersion
}

func checkFreshness(snap *types.Snapshot, vc ValidationContext) bool {
	return !snap.UpdatedAt.Before(vc.LastUpdated)
}

// Cross-reference rebuilds have been seen to wipe most of a cached
// history. Every comment plus one event per applied label is a floor.
func checkCompletenessFloor(snap *types.Snapshot, vc ValidationContext) bool {
	return len(snap.History) >= snap.CountKind(types.KindCommented)+len(vc.Labels)
}

// Label events for needs_info have gone missing from cached histories.
func checkNeedsInfoLabel(snap *types.Snapshot, vc ValidationContext) bool {
	if !slices.Contains(vc.Labels, NeedsInfoLabel) {
		return true
	}
	for i := range snap.History {
		e := &snap.History[i]
		if e.Kind == types.KindLabeled && e.Label == NeedsInfoLabel {
			return true
		}
	}
	return false
}
