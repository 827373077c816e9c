package lifecycle

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

func setup(t *testing.T) (string, *store.Store, *Manager) {
	t.Helper()

	dir := t.TempDir()
	st := store.New(dir)
	t.Cleanup(func() { _ = st.Close() })
	return dir, st, New(dir, st)
}

func TestManager_OpenAndClose(t *testing.T) {
	ctx := context.Background()
	_, st, m := setup(t)

	require.NoError(t, m.Open(ctx, "alice"))
	assert.True(t, st.IsOpen())
	assert.Equal(t, "alice", st.UserID())

	require.NoError(t, m.Close())
	assert.False(t, st.IsOpen())

	// Safe to close again.
	require.NoError(t, m.Close())
}

func TestManager_OpenEmptyUser(t *testing.T) {
	_, _, m := setup(t)
	require.Error(t, m.Open(context.Background(), ""))
}

func TestManager_OpenSameUserIdempotent(t *testing.T) {
	ctx := context.Background()
	_, st, m := setup(t)

	require.NoError(t, m.Open(ctx, "alice"))
	path := st.Path()
	require.NoError(t, m.Open(ctx, "alice"))
	assert.Equal(t, path, st.Path())
}

func TestManager_OpenSwitchesUser(t *testing.T) {
	ctx := context.Background()
	_, st, m := setup(t)

	require.NoError(t, m.Open(ctx, "alice"))
	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{Filename: "a.mp3", Title: "a"}))

	require.NoError(t, m.Open(ctx, "bob"))
	assert.Equal(t, "bob", st.UserID())

	entries, err := st.SelectAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_SecondManagerCannotOpenLockedUser(t *testing.T) {
	ctx := context.Background()
	dir, _, m := setup(t)
	require.NoError(t, m.Open(ctx, "alice"))
	defer m.Close()

	other := store.New(dir)
	defer other.Close()
	m2 := New(dir, other)
	err := m2.Open(ctx, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")

	// A different user is fine.
	require.NoError(t, m2.Open(ctx, "bob"))
	require.NoError(t, m2.Close())
}

func TestManager_FilePath(t *testing.T) {
	ctx := context.Background()
	dir, _, m := setup(t)

	_, ok := m.FilePath("alice")
	assert.False(t, ok, "no file before first open")

	require.NoError(t, m.Open(ctx, "alice"))
	path, ok := m.FilePath("alice")
	require.True(t, ok)
	assert.Equal(t, store.UserDBPath(dir, "alice"), path)

	_, ok = m.FilePath("bob")
	assert.False(t, ok)
}

func TestManager_DeleteFile(t *testing.T) {
	ctx := context.Background()
	_, st, m := setup(t)

	require.NoError(t, m.Open(ctx, "alice"))
	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{Filename: "a.mp3", Title: "a"}))
	path, ok := m.FilePath("alice")
	require.True(t, ok)

	require.NoError(t, m.DeleteFile("alice"))
	assert.False(t, st.IsOpen(), "deleting the open user's file closes the store")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, ok = m.FilePath("alice")
	assert.False(t, ok)
}

func TestManager_DeleteFileMissingUser(t *testing.T) {
	_, _, m := setup(t)
	require.NoError(t, m.DeleteFile("nobody"))
}

func TestManager_DeleteFileReopens(t *testing.T) {
	ctx := context.Background()
	_, st, m := setup(t)

	require.NoError(t, m.Open(ctx, "alice"))
	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{Filename: "a.mp3", Title: "a"}))
	require.NoError(t, m.DeleteFile("alice"))

	// The user can come back with a fresh, empty store.
	require.NoError(t, m.Open(ctx, "alice"))
	entries, err := st.SelectAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_MemoryMode(t *testing.T) {
	ctx := context.Background()
	st := store.New("")
	t.Cleanup(func() { _ = st.Close() })
	m := New("", st)

	require.NoError(t, m.Open(ctx, "alice"))
	assert.True(t, st.IsOpen())

	_, ok := m.FilePath("alice")
	assert.False(t, ok, "memory mode has no file")
	require.NoError(t, m.DeleteFile("alice"))
	require.NoError(t, m.Close())
}
