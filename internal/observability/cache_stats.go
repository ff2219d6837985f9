// Package observability provides counters for snapshot cache behavior.
package observability

import (
	"sort"
	"sync"
	"sync/atomic"
)

// CacheStats counts snapshot loads, validations and dumps.
// A single instance may be shared by every store in a process.
type CacheStats struct {
	Loads          atomic.Int64
	Hits           atomic.Int64
	Misses         atomic.Int64
	DecodeFailures atomic.Int64
	Dumps          atomic.Int64
	DumpFailures   atomic.Int64

	mu            sync.RWMutex
	invalidations map[string]int64 // rule name → count
}

// RuleCount is the invalidation count of one validation rule.
type RuleCount struct {
	Rule  string
	Count int64
}

// NewCacheStats creates an empty stats tracker.
func NewCacheStats() *CacheStats {
	return &CacheStats{invalidations: make(map[string]int64)}
}

// RecordInvalidation records that a loaded snapshot failed the named rule.
func (c *CacheStats) RecordInvalidation(rule string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations[rule]++
}

// Invalidations returns per-rule counts, most frequent first.
// Ties are ordered by rule name.
func (c *CacheStats) Invalidations() []RuleCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]RuleCount, 0, len(c.invalidations))
	for rule, n := range c.invalidations {
		out = append(out, RuleCount{Rule: rule, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// HitRate returns the share of loads that produced a valid snapshot, in percent.
func (c *CacheStats) HitRate() float64 {
	loads := c.Loads.Load()
	if loads == 0 {
		return 0
	}
	return float64(c.Hits.Load()) / float64(loads) * 100
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Loads          int64       `json:"loads"`
	Hits           int64       `json:"hits"`
	Misses         int64       `json:"misses"`
	DecodeFailures int64       `json:"decode_failures"`
	Dumps          int64       `json:"dumps"`
	DumpFailures   int64       `json:"dump_failures"`
	Invalidations  []RuleCount `json:"invalidations,omitempty"`
}

// Snapshot copies the current counter values.
func (c *CacheStats) Snapshot() Snapshot {
	return Snapshot{
		Loads:          c.Loads.Load(),
		Hits:           c.Hits.Load(),
		Misses:         c.Misses.Load(),
		DecodeFailures: c.DecodeFailures.Load(),
		Dumps:          c.Dumps.Load(),
		DumpFailures:   c.DumpFailures.Load(),
		Invalidations:  c.Invalidations(),
	}
}
