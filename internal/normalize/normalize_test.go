package normalize

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/bullbot/history/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenIdentity struct{}

func (brokenIdentity) Login() (string, error) { return "", types.ErrIncompleteIdentity }
func (brokenIdentity) String() string         { return "Jane Doe <jane@example.com>" }

func strPtr(s string) *string { return &s }

func newTestNormalizer() (*Normalizer, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(logger), &buf
}

func TestCommit(t *testing.T) {
	n, _ := newTestNormalizer()
	est := time.FixedZone("EST", -5*3600)

	event, ok := n.Commit(types.RawCommit{
		SHA:           "abc123",
		Committer:     types.GitUser{User: "alice"},
		CommitterDate: time.Date(2024, 1, 2, 7, 0, 0, 0, est),
		Message:       "fix: thing\n\nlong body",
	})
	require.True(t, ok)
	assert.Equal(t, types.KindCommitted, event.Kind)
	assert.Equal(t, "alice", event.Actor)
	assert.Equal(t, "abc123", event.ID)
	assert.Equal(t, "fix: thing\n\nlong body", event.Message)
	assert.Equal(t, time.UTC, event.CreatedAt.Location())
	assert.True(t, event.CreatedAt.Equal(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))
}

func TestCommit_IdentityFallbacks(t *testing.T) {
	n, _ := newTestNormalizer()

	event, ok := n.Commit(types.RawCommit{SHA: "1", Committer: brokenIdentity{}})
	require.True(t, ok)
	assert.Equal(t, "Jane Doe <jane@example.com>", event.Actor)

	event, ok = n.Commit(types.RawCommit{SHA: "2", Committer: types.GitUser{Name: "Bob", Email: "bob@example.com"}})
	require.True(t, ok)
	assert.Equal(t, "Bob <bob@example.com>", event.Actor)

	event, ok = n.Commit(types.RawCommit{SHA: "3"})
	require.True(t, ok)
	assert.Equal(t, UnknownActor, event.Actor)
}

func TestReview_StateMapping(t *testing.T) {
	n, _ := newTestNormalizer()
	tests := []struct {
		state string
		kind  types.EventKind
	}{
		{ReviewStateCommented, types.KindReviewComment},
		{ReviewStateChangesRequested, types.KindReviewChangesRequested},
		{ReviewStateApproved, types.KindReviewApproved},
		{ReviewStateDismissed, types.KindReviewDismissed},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			event, ok := n.Review(types.RawReview{
				ID:          "r1",
				State:       tt.state,
				User:        &types.ReviewUser{Login: "carol"},
				SubmittedAt: "2024-05-06T07:08:09Z",
				CommitID:    strPtr("deadbeef"),
				Body:        strPtr("looks good"),
			})
			require.True(t, ok)
			assert.Equal(t, tt.kind, event.Kind)
			assert.Equal(t, "carol", event.Actor)
			assert.Equal(t, "r1", event.ID)
			assert.Equal(t, "looks good", event.Body)
			require.NotNil(t, event.CommitID)
			assert.Equal(t, "deadbeef", *event.CommitID)
			assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), event.CreatedAt)
		})
	}
}

func TestReview_MissingCommitID(t *testing.T) {
	n, _ := newTestNormalizer()
	event, ok := n.Review(types.RawReview{
		ID:          "r2",
		State:       ReviewStateApproved,
		User:        &types.ReviewUser{Login: "dave"},
		SubmittedAt: "2024-05-06T07:08:09Z",
	})
	require.True(t, ok)
	assert.Nil(t, event.CommitID)
	assert.Empty(t, event.Body)
}

func TestReview_Skips(t *testing.T) {
	n, logs := newTestNormalizer()

	_, ok := n.Review(types.RawReview{State: ReviewStateApproved, SubmittedAt: "2024-05-06T07:08:09Z"})
	assert.False(t, ok, "ghost user should be skipped")

	_, ok = n.Review(types.RawReview{State: ReviewStatePending, User: &types.ReviewUser{Login: "x"}})
	assert.False(t, ok, "pending review should be skipped")
	assert.Empty(t, logs.String(), "silent skips should not log")

	_, ok = n.Review(types.RawReview{State: "EXPLODED", User: &types.ReviewUser{Login: "x"}, SubmittedAt: "2024-05-06T07:08:09Z"})
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "unknown review state")

	_, ok = n.Review(types.RawReview{State: ReviewStateApproved, User: &types.ReviewUser{Login: "x"}, SubmittedAt: "yesterday"})
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "unparsable review timestamp")
}

func TestReviews_Batch(t *testing.T) {
	n, _ := newTestNormalizer()
	events := n.Reviews([]types.RawReview{
		{ID: "1", State: ReviewStateApproved, User: &types.ReviewUser{Login: "a"}, SubmittedAt: "2024-01-01T00:00:00Z"},
		{ID: "2", State: ReviewStatePending, User: &types.ReviewUser{Login: "a"}},
		{ID: "3", State: ReviewStateCommented, User: nil, SubmittedAt: "2024-01-01T00:00:00Z"},
		{ID: "4", State: ReviewStateDismissed, User: &types.ReviewUser{Login: "b"}, SubmittedAt: "2024-01-02T00:00:00Z"},
	})
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "4", events[1].ID)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 11, 5, 10, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2023-11-05T10:30:00Z",
		"2023-11-05T12:30:00+02:00",
		"2023-11-05T10:30:00",
		"2023-11-05 10:30:00",
		" 2023-11-05T10:30:00Z ",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), "%s parsed to %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseTimestamp("")
	assert.ErrorIs(t, err, types.ErrMissingTimestamp)
	_, err = ParseTimestamp("not a time")
	assert.ErrorIs(t, err, types.ErrMissingTimestamp)
}
