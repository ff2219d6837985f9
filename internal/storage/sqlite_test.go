package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_PutGetOverwrite(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "history/1/history.snap", []byte("v1")))
	require.NoError(t, s.Put(ctx, "history/1/history.snap", []byte("v2")))

	got, err := s.Get(ctx, "history/1/history.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	exists, err := s.Exists(ctx, "history/1/history.snap")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteStorage_NotFoundAndDelete(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, s.Put(ctx, "a", []byte("x")))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	exists, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteStorage_ListObjects(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	for _, p := range []string{"history/2/history.snap", "history/1/history.snap", "misc/z"} {
		require.NoError(t, s.Put(ctx, p, []byte("x")))
	}

	got, err := s.ListObjects(ctx, "history/")
	require.NoError(t, err)
	assert.Equal(t, []string{"history/1/history.snap", "history/2/history.snap"}, got)

	all, err := s.ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStorage_RejectsInvalidPath(t *testing.T) {
	s := newTestSQLiteStorage(t)
	assert.ErrorIs(t, s.Put(context.Background(), "../x", []byte("x")), ErrInvalidPath)
}
