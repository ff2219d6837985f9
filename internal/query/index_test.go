package query

import (
	"testing"
	"time"

	"github.com/bullbot/history/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func comment(actor, body string, minutes int) types.Event {
	return types.Event{Kind: types.KindCommented, Actor: actor, Body: body, CreatedAt: at(minutes)}
}

func labeled(actor, label string, minutes int) types.Event {
	return types.Event{Kind: types.KindLabeled, Actor: actor, Label: label, CreatedAt: at(minutes)}
}

func unlabeled(actor, label string, minutes int) types.Event {
	return types.Event{Kind: types.KindUnlabeled, Actor: actor, Label: label, CreatedAt: at(minutes)}
}

func sampleIndex() *Index {
	return New([]types.Event{
		comment("alice", "Thanks for the report", 0),
		{Kind: types.KindAssigned, Actor: "bob", CreatedAt: at(1)},
		comment("bob", "cc @carol could you look?", 2),
		{Kind: types.KindCommitted, Actor: "dave", ID: "sha1", Message: "fix", CreatedAt: at(3)},
		{Kind: types.KindSubscribed, Actor: "erin", CreatedAt: at(4)},
		comment("alice", "Looks GOOD to me", 5),
		{Kind: types.KindCommitted, Actor: "dave", ID: "sha2", Message: "tests", CreatedAt: at(6)},
		comment("bob", "ping @carol", 7),
	})
}

func TestFindByActor(t *testing.T) {
	ix := sampleIndex()

	all := ix.FindAllByActor("", nil)
	assert.Len(t, all, ix.Len())

	comments := ix.FindAllByActor(types.KindCommented, []string{"alice", "bob"})
	assert.Len(t, comments, 4)

	first := ix.FindByActor(types.KindCommented, []string{"bob"}, 1)
	require.Len(t, first, 1)
	assert.Equal(t, "cc @carol could you look?", first[0].Body)

	assert.Empty(t, ix.FindAllByActor(types.KindCommented, []string{}))
	assert.Empty(t, ix.FindAllByActor(types.KindReviewApproved, nil))
}

func TestCommentsAndSearch(t *testing.T) {
	ix := sampleIndex()

	assert.Equal(t, []string{"Thanks for the report", "Looks GOOD to me"}, ix.CommentsBy("alice"))
	assert.Equal(t, []string{"Looks GOOD to me"}, ix.SearchComments("alice", "good"))
	assert.Empty(t, ix.SearchComments("alice", "ship"))
	assert.Empty(t, ix.CommentsBy("nobody"))
}

func TestAssignedAndSubscribed(t *testing.T) {
	ix := sampleIndex()

	assert.True(t, ix.WasAssigned("bob"))
	assert.False(t, ix.WasAssigned("alice"))
	assert.True(t, ix.WasSubscribed("erin"))
	assert.False(t, ix.WasSubscribed("bob"))
}

func TestLastNotified(t *testing.T) {
	ix := sampleIndex()

	when, ok := ix.LastNotified([]string{"carol"})
	require.True(t, ok)
	assert.Equal(t, at(7), when)

	_, ok = ix.LastNotified([]string{"mallory"})
	assert.False(t, ok)
}

func TestLastComment(t *testing.T) {
	ix := sampleIndex()

	body, ok := ix.LastComment("alice")
	require.True(t, ok)
	assert.Equal(t, "Looks GOOD to me", body)

	body, ok = ix.LastComment("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, "ping @carol", body)

	_, ok = ix.LastComment("erin")
	assert.False(t, ok)
}

func TestLastCommitDate(t *testing.T) {
	when, ok := sampleIndex().LastCommitDate()
	require.True(t, ok)
	assert.Equal(t, at(6), when)

	_, ok = New(nil).LastCommitDate()
	assert.False(t, ok)
}

func TestEventsReturnsCopy(t *testing.T) {
	ix := sampleIndex()
	events := ix.Events()
	events[0].Body = "changed"

	body, _ := ix.LastComment("alice")
	assert.Equal(t, "Looks GOOD to me", body)
	assert.Equal(t, "Thanks for the report", ix.CommentsBy("alice")[0])
}

func TestWithBotNames(t *testing.T) {
	ix := New(nil)
	assert.True(t, ix.IsBot("ansibot"))
	assert.Equal(t, DefaultBotNames, ix.BotNames())

	ix = New(nil, WithBotNames([]string{"helperbot"}))
	assert.True(t, ix.IsBot("helperbot"))
	assert.False(t, ix.IsBot("ansibot"))
}
