package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	herrors "github.com/bullbot/history/internal/errors"
	"github.com/bullbot/history/internal/observability"
	"github.com/bullbot/history/internal/storage"
	"github.com/bullbot/history/pkg/types"
	"github.com/spaolacci/murmur3"
)

const (
	// DefaultPrefix is the object path prefix for snapshots.
	DefaultPrefix = "history"

	snapshotObjectName = "history.snap"
	maxItemSegmentLen  = 120
)

// Option configures a Store.
type Option func(*Store)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrefix sets the object path prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRules replaces the validation rules.
func WithRules(rules []Rule) Option {
	return func(s *Store) {
		if rules != nil {
			s.rules = rules
		}
	}
}

// WithStats shares a counters instance with the store.
func WithStats(stats *observability.CacheStats) Option {
	return func(s *Store) {
		if stats != nil {
			s.stats = stats
		}
	}
}

// Store loads, validates and dumps one snapshot per tracked item.
// It does no locking: callers must keep at most one writer per item.
type Store struct {
	storage storage.ObjectStorage
	prefix  string
	rules   []Rule
	stats   *observability.CacheStats
	logger  *slog.Logger
}

// NewStore creates a snapshot store on top of an object storage backend.
func NewStore(backend storage.ObjectStorage, opts ...Option) *Store {
	s := &Store{
		storage: backend,
		prefix:  DefaultPrefix,
		rules:   DefaultRules(),
		stats:   observability.NewCacheStats(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cache")
	return s
}

// Stats returns the store's counters.
func (s *Store) Stats() *observability.CacheStats {
	return s.stats
}

// ObjectPath returns where the snapshot for itemID is stored.
func (s *Store) ObjectPath(itemID string) string {
	return path.Join(s.prefix, itemSegment(itemID), snapshotObjectName)
}

// Load reads the snapshot for itemID. A missing object, a storage error
// or an undecodable blob all report (nil, false); none are returned.
func (s *Store) Load(ctx context.Context, itemID string) (*types.Snapshot, bool) {
	s.stats.Loads.Add(1)
	objectPath := s.ObjectPath(itemID)

	data, err := s.storage.Get(ctx, objectPath)
	if err != nil {
		s.stats.Misses.Add(1)
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.InfoContext(ctx, "no cached history", "item", itemID, "object", objectPath)
		} else {
			s.logger.WarnContext(ctx, "cached history unreadable", "item", itemID, "object", objectPath, "error", err)
		}
		return nil, false
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		s.stats.Misses.Add(1)
		s.stats.DecodeFailures.Add(1)
		s.logger.WarnContext(ctx, "cached history failed to load", "item", itemID, "object", objectPath, "error", err)
		return nil, false
	}

	return snap, true
}

// Validate checks snap with the store's rules and records the outcome.
func (s *Store) Validate(snap *types.Snapshot, vc ValidationContext) Result {
	result := Validate(snap, vc, s.rules)
	if result.Valid {
		s.stats.Hits.Add(1)
	} else if snap != nil {
		s.stats.RecordInvalidation(result.Rule)
	}
	return result
}

// LoadValid loads the snapshot for itemID and validates it. The snapshot
// is returned only when it is valid.
func (s *Store) LoadValid(ctx context.Context, itemID string, vc ValidationContext) (*types.Snapshot, Result) {
	snap, ok := s.Load(ctx, itemID)
	if !ok {
		return nil, Result{Valid: false, Rule: RuleMissing}
	}
	result := s.Validate(snap, vc)
	if !result.Valid {
		s.logger.InfoContext(ctx, "cached history invalidated", "item", itemID, "rule", result.Rule)
		return nil, result
	}
	return snap, result
}

// Dump persists the full timeline for itemID, replacing any previous
// snapshot. A timeline holding an event without a timestamp is refused
// with an integrity error and nothing is written. Storage failures are
// logged and returned.
func (s *Store) Dump(ctx context.Context, itemID string, events []types.Event, lastUpdated time.Time, schemaVersion float64) error {
	if err := CheckIntegrity(events); err != nil {
		s.logger.ErrorContext(ctx, "refusing to cache corrupt history", "item", itemID, "events", len(events), "error", err)
		return herrors.NewIntegrityError("history contains an event without a timestamp", err).
			WithDetails(map[string]interface{}{"item": itemID})
	}

	history := make([]types.Event, len(events))
	copy(history, events)

	data, err := EncodeSnapshot(&types.Snapshot{
		Version:   schemaVersion,
		UpdatedAt: lastUpdated.UTC(),
		History:   history,
	})
	if err != nil {
		s.stats.DumpFailures.Add(1)
		return herrors.NewCacheError(herrors.CodeEncodeFailed, "failed to encode snapshot", err)
	}

	objectPath := s.ObjectPath(itemID)
	if err := s.storage.Put(ctx, objectPath, data); err != nil {
		s.stats.DumpFailures.Add(1)
		s.logger.ErrorContext(ctx, "failed to write history cache", "item", itemID, "object", objectPath, "error", err)
		return herrors.NewStorageError(herrors.CodeUploadFailed, fmt.Sprintf("failed to write %s", objectPath), err)
	}

	s.stats.Dumps.Add(1)
	s.logger.DebugContext(ctx, "history cached", "item", itemID, "events", len(history), "bytes", len(data))
	return nil
}

// Delete removes the snapshot for itemID.
func (s *Store) Delete(ctx context.Context, itemID string) error {
	if err := s.storage.Delete(ctx, s.ObjectPath(itemID)); err != nil {
		return herrors.NewStorageError(herrors.CodeUploadFailed, "failed to delete snapshot", err)
	}
	return nil
}

// List returns the object paths of all stored snapshots.
func (s *Store) List(ctx context.Context) ([]string, error) {
	paths, err := s.storage.ListObjects(ctx, s.prefix+"/")
	if err != nil {
		return nil, herrors.NewStorageError(herrors.CodeDownloadFailed, "failed to list snapshots", err)
	}
	out := paths[:0]
	for _, p := range paths {
		if path.Base(p) == snapshotObjectName {
			out = append(out, p)
		}
	}
	return out, nil
}

// CheckIntegrity returns an error naming the first event without a timestamp.
func CheckIntegrity(events []types.Event) error {
	for i := range events {
		if events[i].CreatedAt.IsZero() {
			return fmt.Errorf("event %d (%s by %q): %w", i, events[i].Kind, events[i].Actor, types.ErrMissingTimestamp)
		}
	}
	return nil
}

// itemSegment maps an item id to one path segment. Path-safe ids are used
// as is. Other ids are cleaned and suffixed with "~" and a murmur3 hash of
// the raw id; "~" is never path-safe, so a cleaned id cannot collide with a
// path-safe one. Two unsafe ids share a segment only on a hash collision.
func itemSegment(itemID string) string {
	if isSafeSegment(itemID) {
		return itemID
	}
	var b strings.Builder
	for _, c := range itemID {
		if isSafeRune(c) {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxItemSegmentLen {
			break
		}
	}
	return fmt.Sprintf("%s~%08x", b.String(), murmur3.Sum32([]byte(itemID)))
}

func isSafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > maxItemSegmentLen {
		return false
	}
	for _, c := range s {
		if !isSafeRune(c) {
			return false
		}
	}
	return true
}

func isSafeRune(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
