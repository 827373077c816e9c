package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()

	w := New(50 * time.Millisecond)
	require.NoError(t, w.Start(context.Background(), dir))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func awaitSignal(t *testing.T, w *Watcher) {
	t.Helper()

	select {
	case <-w.Signals():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher signal")
	}
}

func TestWatcher_SignalsOnTrackCreate(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("x"), 0o644))
	awaitSignal(t, w)
}

func TestWatcher_IgnoresNonTrackFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644))

	select {
	case <-w.Signals():
		t.Fatal("non-track file must not produce a signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "track"+string(rune('a'+i))+".flac")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}
	awaitSignal(t, w)

	// The burst lands as one signal; no second one follows.
	select {
	case <-w.Signals():
		t.Fatal("burst must coalesce into a single signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	sub := filepath.Join(dir, "new-album")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "track.ogg"), []byte("x"), 0o644))
	awaitSignal(t, w)
}

func TestWatcher_SidecarLyrics(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.lrc"), []byte("[00:01]hi"), 0o644))
	awaitSignal(t, w)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(0)
	require.NoError(t, w.Start(context.Background(), t.TempDir()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	require.Error(t, w.Start(context.Background(), t.TempDir()))
}

func TestIsTrackFile(t *testing.T) {
	assert.True(t, isTrackFile("/music/a.mp3"))
	assert.True(t, isTrackFile("/music/A.FLAC"))
	assert.True(t, isTrackFile("lyrics.lrc"))
	assert.False(t, isTrackFile("/music/cover.jpg"))
	assert.False(t, isTrackFile("/music/noext"))
}
