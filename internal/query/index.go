// Package query answers read-only questions about a tracked item's timeline:
// who said what and when, label history, command phrases and boilerplate
// comments left by automation.
//
// An Index is not safe for concurrent use.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/bullbot/history/internal/timeline"
	"github.com/bullbot/history/pkg/types"
)

// DefaultBotNames are the automation accounts excluded from human
// attribution and used to find boilerplate comments.
var DefaultBotNames = []string{"ansibot", "ansibullbot"}

// Option configures an Index.
type Option func(*Index)

// WithBotNames sets the recognized bot identities.
func WithBotNames(names []string) Option {
	return func(ix *Index) {
		if names != nil {
			ix.bots = toSet(names)
			ix.botNames = slices.Clone(names)
		}
	}
}

// Index is a query view over a sorted timeline.
type Index struct {
	events     []types.Event
	bots       map[string]struct{}
	botNames   []string
	generation uint64

	waffleCounts map[string]int
	waffleGen    uint64
}

// New builds an index over events, which must already be sorted.
func New(events []types.Event, opts ...Option) *Index {
	ix := &Index{
		events:   events,
		bots:     toSet(DefaultBotNames),
		botNames: slices.Clone(DefaultBotNames),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Replace swaps in a new timeline and drops memoized aggregates.
func (ix *Index) Replace(events []types.Event) {
	ix.events = events
	ix.generation++
}

// Events returns a copy of the timeline.
func (ix *Index) Events() []types.Event {
	return timeline.Clone(ix.events)
}

// Len returns the number of events.
func (ix *Index) Len() int {
	return len(ix.events)
}

// BotNames returns the recognized bot identities.
func (ix *Index) BotNames() []string {
	return slices.Clone(ix.botNames)
}

// IsBot reports whether actor is a recognized bot identity.
func (ix *Index) IsBot(actor string) bool {
	_, ok := ix.bots[actor]
	return ok
}

// FindByActor scans forward for events of kind by any of actors and stops
// after limit matches. An empty kind matches every kind, nil actors match
// every actor and a limit of zero or less means no limit.
func (ix *Index) FindByActor(kind types.EventKind, actors []string, limit int) []types.Event {
	var matches []types.Event
	for i := range ix.events {
		e := &ix.events[i]
		if kind != "" && e.Kind != kind {
			continue
		}
		if actors != nil && !slices.Contains(actors, e.Actor) {
			continue
		}
		matches = append(matches, *e)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches
}

// FindAllByActor is FindByActor without a limit.
func (ix *Index) FindAllByActor(kind types.EventKind, actors []string) []types.Event {
	return ix.FindByActor(kind, actors, 0)
}

// CommentsBy returns the bodies of every comment by user.
func (ix *Index) CommentsBy(user string) []string {
	var bodies []string
	for _, e := range ix.FindAllByActor(types.KindCommented, []string{user}) {
		bodies = append(bodies, e.Body)
	}
	return bodies
}

// SearchComments returns comments by user containing term, ignoring case.
func (ix *Index) SearchComments(user, term string) []string {
	term = strings.ToLower(term)
	var bodies []string
	for _, body := range ix.CommentsBy(user) {
		if strings.Contains(strings.ToLower(body), term) {
			bodies = append(bodies, body)
		}
	}
	return bodies
}

// WasAssigned reports whether user was ever assigned.
func (ix *Index) WasAssigned(user string) bool {
	return len(ix.FindByActor(types.KindAssigned, []string{user}, 1)) > 0
}

// WasSubscribed reports whether user ever subscribed.
func (ix *Index) WasSubscribed(user string) bool {
	return len(ix.FindByActor(types.KindSubscribed, []string{user}, 1)) > 0
}

// LastNotified returns when any of users was last mentioned in a comment.
func (ix *Index) LastNotified(users []string) (time.Time, bool) {
	var last time.Time
	found := false
	for i := range ix.events {
		e := &ix.events[i]
		if e.Kind != types.KindCommented || e.Body == "" {
			continue
		}
		for _, u := range users {
			if strings.Contains(e.Body, "@"+u) {
				if !found || e.CreatedAt.After(last) {
					last = e.CreatedAt
					found = true
				}
				break
			}
		}
	}
	return last, found
}

// LastComment returns the body of the most recent comment by any of users.
func (ix *Index) LastComment(users ...string) (string, bool) {
	for i := len(ix.events) - 1; i >= 0; i-- {
		e := &ix.events[i]
		if e.Kind == types.KindCommented && slices.Contains(users, e.Actor) {
			return e.Body, true
		}
	}
	return "", false
}

// LastCommitDate returns the timestamp of the latest commit.
func (ix *Index) LastCommitDate() (time.Time, bool) {
	for i := len(ix.events) - 1; i >= 0; i-- {
		if ix.events[i].Kind == types.KindCommitted {
			return ix.events[i].CreatedAt, true
		}
	}
	return time.Time{}, false
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
