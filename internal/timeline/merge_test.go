package timeline

import (
	"testing"
	"time"

	"github.com/bullbot/history/pkg/types"
	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ev(kind types.EventKind, id string, offset time.Duration) types.Event {
	return types.Event{Kind: kind, Actor: "alice", ID: id, CreatedAt: base.Add(offset)}
}

func ids(events []types.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestMerge_InterleavesOutOfOrderSources(t *testing.T) {
	existing := []types.Event{
		ev(types.KindCommented, "c1", 0),
		ev(types.KindCommented, "c2", 10*time.Minute),
	}
	commits := []types.Event{
		ev(types.KindCommitted, "sha2", 15*time.Minute),
		ev(types.KindCommitted, "sha1", 5*time.Minute),
	}

	merged := Merge(existing, commits)
	assert.Equal(t, []string{"c1", "sha1", "c2", "sha2"}, ids(merged))
	assert.True(t, IsSorted(merged))
}

func TestMerge_TiesKeepInsertionOrder(t *testing.T) {
	existing := []types.Event{ev(types.KindLabeled, "first", 0)}
	incoming := []types.Event{ev(types.KindUnlabeled, "second", 0), ev(types.KindLabeled, "third", 0)}

	merged := Merge(existing, incoming)
	assert.Equal(t, []string{"first", "second", "third"}, ids(merged))
}

func TestMerge_DoesNotDeduplicate(t *testing.T) {
	commits := []types.Event{ev(types.KindCommitted, "sha1", time.Minute)}

	merged := Merge(nil, commits)
	merged = Merge(merged, commits)
	assert.Len(t, merged, 2)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	existing := make([]types.Event, 1, 8)
	existing[0] = ev(types.KindCommented, "c1", time.Hour)

	merged := Merge(existing, []types.Event{ev(types.KindCommented, "c0", 0)})
	assert.Equal(t, "c1", existing[0].ID)
	assert.Equal(t, []string{"c0", "c1"}, ids(merged))
}

func TestIsSorted(t *testing.T) {
	assert.True(t, IsSorted(nil))
	assert.True(t, IsSorted([]types.Event{ev(types.KindCommented, "a", 0)}))
	assert.False(t, IsSorted([]types.Event{
		ev(types.KindCommented, "a", time.Minute),
		ev(types.KindCommented, "b", 0),
	}))
}

func TestClone(t *testing.T) {
	assert.Nil(t, Clone(nil))

	orig := []types.Event{ev(types.KindCommented, "a", 0)}
	cp := Clone(orig)
	cp[0].ID = "changed"
	assert.Equal(t, "a", orig[0].ID)
}
