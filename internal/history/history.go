// Package history ties the normalizer, timeline merger, cache store and
// query index together into the lifecycle of one tracked item's history.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/bullbot/history/internal/cache"
	herrors "github.com/bullbot/history/internal/errors"
	"github.com/bullbot/history/internal/normalize"
	"github.com/bullbot/history/internal/query"
	"github.com/bullbot/history/internal/timeline"
	"github.com/bullbot/history/pkg/types"
)

// Source reports where a history's timeline came from.
type Source string

const (
	// SourceCache means a valid cached snapshot was adopted.
	SourceCache Source = "cache"
	// SourceRebuilt means the cache was missing or invalid and was rewritten.
	SourceRebuilt Source = "rebuilt"
	// SourceUncached means caching was disabled.
	SourceUncached Source = "uncached"
)

// ErrHistoryFrozen is returned by merges after Freeze.
var ErrHistoryFrozen = herrors.NewValidationError(herrors.CodeHistoryFrozen, "history is frozen")

// Option configures a History.
type Option func(*History)

// WithStore sets the cache store. Without one the history is uncached.
func WithStore(store *cache.Store) Option {
	return func(h *History) {
		h.store = store
	}
}

// WithCache turns cache use on or off. Caching is on by default when a
// store is configured.
func WithCache(enabled bool) Option {
	return func(h *History) {
		h.useCache = enabled
	}
}

// WithSchemaVersion overrides the snapshot version written and required.
func WithSchemaVersion(version float64) Option {
	return func(h *History) {
		if version > 0 {
			h.schemaVersion = version
		}
	}
}

// WithBotNames sets the bot identities used by queries.
func WithBotNames(names []string) Option {
	return func(h *History) {
		h.botNames = names
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithNormalizer sets the normalizer used by MergeCommits and MergeReviews.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(h *History) {
		if n != nil {
			h.normalizer = n
		}
	}
}

// History is the merged, queryable timeline of one tracked item.
// It is not safe for concurrent use.
type History struct {
	itemID      string
	labels      []string
	lastUpdated time.Time

	store         *cache.Store
	useCache      bool
	schemaVersion float64
	botNames      []string
	normalizer    *normalize.Normalizer
	logger        *slog.Logger

	events []types.Event
	index  *query.Index
	source Source
	frozen bool
}

// New builds the history for itemID. With caching enabled a valid cached
// snapshot is adopted as is; otherwise events are adopted and, when
// caching, written back immediately. The timeline is always sorted.
//
// labels and lastUpdated describe the item's current state and decide
// whether a cached snapshot can be trusted.
func New(ctx context.Context, itemID string, events []types.Event, labels []string, lastUpdated time.Time, opts ...Option) (*History, error) {
	if itemID == "" {
		return nil, herrors.NewValidationError(herrors.CodeInvalidItemID, "item id must not be empty")
	}

	h := &History{
		itemID:        itemID,
		labels:        append([]string(nil), labels...),
		lastUpdated:   lastUpdated,
		useCache:      true,
		schemaVersion: types.SchemaVersion,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "history", "item", itemID)
	if h.normalizer == nil {
		h.normalizer = normalize.New(h.logger)
	}

	if err := h.load(ctx, events); err != nil {
		return nil, err
	}

	var qopts []query.Option
	if h.botNames != nil {
		qopts = append(qopts, query.WithBotNames(h.botNames))
	}
	h.index = query.New(h.events, qopts...)
	return h, nil
}

func (h *History) load(ctx context.Context, events []types.Event) error {
	if !h.caching() {
		h.events = timeline.Merge(nil, events)
		h.source = SourceUncached
		return nil
	}

	snap, result := h.store.LoadValid(ctx, h.itemID, cache.ValidationContext{
		Labels:        h.labels,
		LastUpdated:   h.lastUpdated,
		SchemaVersion: h.schemaVersion,
	})
	if result.Valid {
		h.events = timeline.Merge(nil, snap.History)
		h.source = SourceCache
		h.logger.DebugContext(ctx, "using cached history", "events", len(h.events))
		return nil
	}

	h.logger.InfoContext(ctx, "rebuilding history", "rule", result.Rule, "events", len(events))
	h.events = timeline.Merge(nil, events)
	h.source = SourceRebuilt
	return h.Dump(ctx)
}

func (h *History) caching() bool {
	return h.useCache && h.store != nil
}

// ItemID returns the tracked item's id.
func (h *History) ItemID() string {
	return h.itemID
}

// Source reports where the timeline came from.
func (h *History) Source() Source {
	return h.source
}

// Timeline returns a copy of the sorted timeline.
func (h *History) Timeline() []types.Event {
	return timeline.Clone(h.events)
}

// Len returns the number of events in the timeline.
func (h *History) Len() int {
	return len(h.events)
}

// Index returns the query index over the current timeline. The index is
// refreshed in place by every merge.
func (h *History) Index() *query.Index {
	return h.index
}

// MergeCommits normalizes raw commits and merges them into the timeline.
// It returns how many events were added.
func (h *History) MergeCommits(raws []types.RawCommit) (int, error) {
	if h.frozen {
		return 0, ErrHistoryFrozen
	}
	return h.merge(h.normalizer.Commits(raws)), nil
}

// MergeReviews normalizes raw reviews and merges them into the timeline.
// It returns how many events were added.
func (h *History) MergeReviews(raws []types.RawReview) (int, error) {
	if h.frozen {
		return 0, ErrHistoryFrozen
	}
	return h.merge(h.normalizer.Reviews(raws)), nil
}

// MergeEvents merges already normalized events into the timeline.
func (h *History) MergeEvents(events []types.Event) (int, error) {
	if h.frozen {
		return 0, ErrHistoryFrozen
	}
	return h.merge(events), nil
}

func (h *History) merge(incoming []types.Event) int {
	if len(incoming) == 0 {
		return 0
	}
	h.events = timeline.Merge(h.events, incoming)
	h.index.Replace(h.events)
	h.logger.Debug("merged events", "added", len(incoming), "total", len(h.events))
	return len(incoming)
}

// Freeze rejects further merges.
func (h *History) Freeze() {
	h.frozen = true
}

// Frozen reports whether Freeze was called.
func (h *History) Frozen() bool {
	return h.frozen
}

// Dump writes the current timeline, merged events included, to the cache.
// It does nothing when caching is disabled.
func (h *History) Dump(ctx context.Context) error {
	if !h.caching() {
		return nil
	}
	return h.store.Dump(ctx, h.itemID, h.events, h.lastUpdated, h.schemaVersion)
}
