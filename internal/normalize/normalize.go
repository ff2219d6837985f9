// Package normalize converts upstream commit and review records into
// timeline events. Records that should not appear on the timeline are
// reported with a false second return value rather than an error.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bullbot/history/pkg/types"
)

// Upstream review states.
const (
	ReviewStateCommented        = "COMMENTED"
	ReviewStateChangesRequested = "CHANGES_REQUESTED"
	ReviewStateApproved         = "APPROVED"
	ReviewStateDismissed        = "DISMISSED"
	ReviewStatePending          = "PENDING"
)

// UnknownActor is recorded for commits without any committer identity.
const UnknownActor = "unknown"

var reviewKinds = map[string]types.EventKind{
	ReviewStateCommented:        types.KindReviewComment,
	ReviewStateChangesRequested: types.KindReviewChangesRequested,
	ReviewStateApproved:         types.KindReviewApproved,
	ReviewStateDismissed:        types.KindReviewDismissed,
}

// Normalizer turns raw records into events.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a normalizer. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With("component", "normalize")}
}

// Commit converts a raw commit. The committer login is preferred; if the
// lookup fails the identity's string form is used instead.
func (n *Normalizer) Commit(raw types.RawCommit) (types.Event, bool) {
	return types.Event{
		Kind:      types.KindCommitted,
		Actor:     committerActor(raw.Committer),
		CreatedAt: raw.CommitterDate.UTC(),
		ID:        raw.SHA,
		Message:   raw.Message,
	}, true
}

// Commits converts a batch of raw commits.
func (n *Normalizer) Commits(raws []types.RawCommit) []types.Event {
	out := make([]types.Event, 0, len(raws))
	for _, raw := range raws {
		if event, ok := n.Commit(raw); ok {
			out = append(out, event)
		}
	}
	return out
}

// Review converts a raw review. Pending reviews and reviews by deleted
// accounts are dropped silently; unknown states and unparsable timestamps
// are logged and dropped.
func (n *Normalizer) Review(raw types.RawReview) (types.Event, bool) {
	if raw.User == nil || raw.User.Login == "" {
		return types.Event{}, false
	}
	if raw.State == ReviewStatePending {
		return types.Event{}, false
	}

	kind, ok := reviewKinds[raw.State]
	if !ok {
		n.logger.Error("unknown review state", "state", raw.State, "review_id", raw.ID)
		return types.Event{}, false
	}

	submitted, err := ParseTimestamp(raw.SubmittedAt)
	if err != nil {
		n.logger.Error("unparsable review timestamp", "review_id", raw.ID, "error", err)
		return types.Event{}, false
	}

	event := types.Event{
		Kind:      kind,
		Actor:     raw.User.Login,
		CreatedAt: submitted,
		ID:        raw.ID,
	}
	if raw.CommitID != nil {
		id := *raw.CommitID
		event.CommitID = &id
	}
	if raw.Body != nil {
		event.Body = *raw.Body
	}
	return event, true
}

// Reviews converts a batch of raw reviews, dropping skipped ones.
func (n *Normalizer) Reviews(raws []types.RawReview) []types.Event {
	out := make([]types.Event, 0, len(raws))
	for _, raw := range raws {
		if event, ok := n.Review(raw); ok {
			out = append(out, event)
		}
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// ParseTimestamp parses upstream timestamps and returns them in UTC.
// Values without an offset are taken to be UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", types.ErrMissingTimestamp)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", types.ErrMissingTimestamp, value)
}

func committerActor(identity types.Identity) string {
	if identity == nil {
		return UnknownActor
	}
	login, err := identity.Login()
	if err != nil || login == "" {
		return identity.String()
	}
	return login
}
