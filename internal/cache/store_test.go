package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	herrors "github.com/bullbot/history/internal/errors"
	"github.com/bullbot/history/internal/storage"
	"github.com/bullbot/history/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/require"
)

// failingStorage wraps a backend and fails writes or reads on demand.
type failingStorage struct {
	storage.ObjectStorage
	putErr error
	getErr error
}

func (f *failingStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.ObjectStorage.Put(ctx, objectPath, data)
}

func (f *failingStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ObjectStorage.Get(ctx, objectPath)
}

func newTestStore(t *testing.T) (*Store, *storage.LocalStorage) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewStore(local), local
}

func TestStore_DumpLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	snap := validSnapshot()

	require.NoError(t, store.Dump(ctx, "ansible-ansible-123", snap.History, snap.UpdatedAt, types.SchemaVersion))

	got, ok := store.Load(ctx, "ansible-ansible-123")
	require.True(t, ok)
	assert.Equal(t, snap.History, got.History)
	assert.Equal(t, types.SchemaVersion, got.Version)
	assert.True(t, got.UpdatedAt.Equal(snap.UpdatedAt))

	res := store.Validate(got, validContext())
	assert.True(t, res.Valid)
	assert.Equal(t, int64(1), store.Stats().Hits.Load())
	assert.Equal(t, int64(1), store.Stats().Dumps.Load())
}

func TestStore_DumpEmptyTimelineStaysValid(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Dump(ctx, "empty", nil, t0, types.SchemaVersion))

	snap, res := store.LoadValid(ctx, "empty", ValidationContext{LastUpdated: t0, SchemaVersion: types.SchemaVersion})
	require.True(t, res.Valid, "rule %s", res.Rule)
	assert.NotNil(t, snap.History)
	assert.Empty(t, snap.History)
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	snap, ok := store.Load(context.Background(), "nothing")
	assert.False(t, ok)
	assert.Nil(t, snap)
	assert.Equal(t, int64(1), store.Stats().Misses.Load())

	_, res := store.LoadValid(context.Background(), "nothing", validContext())
	assert.Equal(t, RuleMissing, res.Rule)
}

func TestStore_LoadGarbageIsAbsent(t *testing.T) {
	store, local := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, local.Put(ctx, store.ObjectPath("42"), []byte("definitely not a snapshot")))

	snap, ok := store.Load(ctx, "42")
	assert.False(t, ok)
	assert.Nil(t, snap)
	assert.Equal(t, int64(1), store.Stats().DecodeFailures.Load())
}

func TestStore_LoadStorageErrorIsAbsent(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := NewStore(&failingStorage{ObjectStorage: local, getErr: storage.ErrDownloadFailed})

	_, ok := store.Load(context.Background(), "42")
	assert.False(t, ok)
}

func TestStore_LoadValidRecordsInvalidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	snap := validSnapshot()
	require.NoError(t, store.Dump(ctx, "7", snap.History, snap.UpdatedAt, 1.1))

	got, res := store.LoadValid(ctx, "7", validContext())
	assert.Nil(t, got)
	assert.Equal(t, RuleSchemaVersion, res.Rule)

	inv := store.Stats().Invalidations()
	require.Len(t, inv, 1)
	assert.Equal(t, RuleSchemaVersion, inv[0].Rule)
}

func TestStore_DumpRefusesMissingTimestamp(t *testing.T) {
	store, local := newTestStore(t)
	ctx := context.Background()
	events := []types.Event{
		{Kind: types.KindCommented, Actor: "alice", CreatedAt: t0},
		{Kind: types.KindLabeled, Actor: "bob", Label: "bug"},
	}

	err := store.Dump(ctx, "9", events, t0, types.SchemaVersion)
	require.Error(t, err)
	assert.Equal(t, herrors.ErrCategoryIntegrity, herrors.GetCategory(err))
	assert.True(t, errors.Is(err, types.ErrMissingTimestamp))

	exists, err := local.Exists(ctx, store.ObjectPath("9"))
	require.NoError(t, err)
	assert.False(t, exists, "nothing may be written for a corrupt timeline")
}

func TestStore_DumpStorageFailureIsReturned(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := NewStore(&failingStorage{ObjectStorage: local, putErr: storage.ErrUploadFailed})

	err = store.Dump(context.Background(), "1", validSnapshot().History, t0, types.SchemaVersion)
	require.Error(t, err)
	assert.Equal(t, herrors.ErrCategoryStorage, herrors.GetCategory(err))
	assert.True(t, errors.Is(err, storage.ErrUploadFailed))
	assert.True(t, herrors.IsRetryable(err))
	assert.Equal(t, int64(1), store.Stats().DumpFailures.Load())
}

func TestStore_DumpOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	snap := validSnapshot()

	require.NoError(t, store.Dump(ctx, "1", snap.History, t0, types.SchemaVersion))
	require.NoError(t, store.Dump(ctx, "1", snap.History[:1], t0.Add(time.Hour), types.SchemaVersion))

	got, ok := store.Load(ctx, "1")
	require.True(t, ok)
	assert.Len(t, got.History, 1)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))
}

func TestStore_ObjectPath(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Equal(t, "history/ansible-123/history.snap", store.ObjectPath("ansible-123"))

	a := store.ObjectPath("ansible/ansible#123")
	b := store.ObjectPath("ansible/ansible@123")
	assert.NotEqual(t, a, b, "distinct ids must map to distinct objects")
	assert.True(t, strings.HasPrefix(a, "history/ansible_ansible_123~"))
	assert.Equal(t, 3, strings.Count(a, "/")+1)

	// A safe id spelled like a cleaned unsafe id stays distinct.
	lookalike := fmt.Sprintf("x_y-%08x", murmur3.Sum32([]byte("x/y")))
	assert.Equal(t, "history/"+lookalike+"/history.snap", store.ObjectPath(lookalike))
	assert.NotEqual(t, store.ObjectPath("x/y"), store.ObjectPath(lookalike))
	assert.NotEqual(t, store.ObjectPath("x/y"), store.ObjectPath(fmt.Sprintf("x_y~%08x", murmur3.Sum32([]byte("x/y")))))

	custom := NewStore(nil, WithPrefix("/bots/history/"))
	assert.Equal(t, "bots/history/x/history.snap", custom.ObjectPath("x"))
}

func TestStore_ListAndDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		require.NoError(t, store.Dump(ctx, id, nil, t0, types.SchemaVersion))
	}

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"history/1/history.snap", "history/2/history.snap"}, paths)

	require.NoError(t, store.Delete(ctx, "1"))
	paths, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"history/2/history.snap"}, paths)
}

func TestCheckIntegrity(t *testing.T) {
	assert.NoError(t, CheckIntegrity(nil))
	assert.NoError(t, CheckIntegrity(validSnapshot().History))

	err := CheckIntegrity([]types.Event{{Kind: types.KindAssigned, Actor: "x"}})
	assert.ErrorIs(t, err, types.ErrMissingTimestamp)
}
