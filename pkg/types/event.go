// Package types provides the core data types of the history index.
package types

import (
	"fmt"
	"time"
)

// EventKind discriminates the events of a timeline.
type EventKind string

const (
	KindCommented              EventKind = "commented"
	KindLabeled                EventKind = "labeled"
	KindUnlabeled              EventKind = "unlabeled"
	KindCommitted              EventKind = "committed"
	KindAssigned               EventKind = "assigned"
	KindSubscribed             EventKind = "subscribed"
	KindReviewComment          EventKind = "review_comment"
	KindReviewChangesRequested EventKind = "review_changes_requested"
	KindReviewApproved         EventKind = "review_approved"
	KindReviewDismissed        EventKind = "review_dismissed"
)

// IsReview reports whether the kind is one of the review_* kinds.
func (k EventKind) IsReview() bool {
	switch k {
	case KindReviewComment, KindReviewChangesRequested, KindReviewApproved, KindReviewDismissed:
		return true
	}
	return false
}

// IsLabelChange reports whether the kind adds or removes a label.
func (k EventKind) IsLabelChange() bool {
	return k == KindLabeled || k == KindUnlabeled
}

// Event is one timestamped occurrence on a tracked item.
type Event struct {
	// Kind is the event discriminator
	Kind EventKind `json:"event"`

	// Actor is the login of whoever caused the event
	Actor string `json:"actor"`

	// CreatedAt is when the event happened, kept in UTC
	CreatedAt time.Time `json:"created_at"`

	// ID is the upstream reference key (comment id, commit sha, review id)
	ID string `json:"id,omitempty"`

	// Body is the text of comments and reviews
	Body string `json:"body,omitempty"`

	// Label is set on labeled/unlabeled events
	Label string `json:"label,omitempty"`

	// Message is the commit message of committed events
	Message string `json:"message,omitempty"`

	// CommitID is the reviewed commit; nil when upstream did not report one
	CommitID *string `json:"commit_id,omitempty"`
}

// Validate checks the fields every event needs for ordering and lookup.
func (e *Event) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: %s event by %q has no timestamp", ErrMissingTimestamp, e.Kind, e.Actor)
	}
	return nil
}

// HasLabel reports whether the event is a label change.
func (e *Event) HasLabel() bool {
	return e.Kind.IsLabelChange()
}
