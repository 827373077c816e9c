package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

func setup(t *testing.T) (*store.Store, *Aggregator) {
	t.Helper()

	st := store.New(t.TempDir())
	require.NoError(t, st.Open(context.Background(), "alice"))
	t.Cleanup(func() { _ = st.Close() })
	return st, New(st)
}

func TestStats_Empty(t *testing.T) {
	_, agg := setup(t)

	got, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalEntries)
	assert.Zero(t, got.EntriesWithLyrics)
	assert.Zero(t, got.TotalLyricsChars)
	assert.False(t, got.HasLastUpdated)
}

func TestStats_CountsAndSums(t *testing.T) {
	ctx := context.Background()
	st, agg := setup(t)

	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{
		Filename:      "a.mp3",
		Title:         "a",
		LyricsContent: "hello",
		HasLyrics:     true,
		LyricsLen:     5,
	}))
	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{
		Filename:      "b.mp3",
		Title:         "b",
		LyricsContent: "goodbye now",
		HasLyrics:     true,
		LyricsLen:     11,
	}))
	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{
		Filename: "c.mp3",
		Title:    "c",
	}))

	got, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalEntries)
	assert.Equal(t, 2, got.EntriesWithLyrics)
	assert.Equal(t, int64(16), got.TotalLyricsChars)
	assert.LessOrEqual(t, got.EntriesWithLyrics, got.TotalEntries)
}

func TestStats_LastUpdated(t *testing.T) {
	ctx := context.Background()
	st, agg := setup(t)

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, st.SetMeta(ctx, store.MetaLastUpdated, "1773480413000"))

	got, err := agg.Stats(ctx)
	require.NoError(t, err)
	require.True(t, got.HasLastUpdated)
	assert.Equal(t, at.UnixMilli(), got.LastUpdated.UnixMilli())
}

func TestStats_MalformedLastUpdated(t *testing.T) {
	ctx := context.Background()
	st, agg := setup(t)

	require.NoError(t, st.UpsertOne(ctx, model.IndexEntry{Filename: "a.mp3", Title: "a"}))
	require.NoError(t, st.SetMeta(ctx, store.MetaLastUpdated, "not-a-number"))

	got, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalEntries, "totals survive a corrupt timestamp")
	assert.False(t, got.HasLastUpdated)
}

func TestStats_StoreNotOpen(t *testing.T) {
	st := store.New(t.TempDir())
	agg := New(st)

	got, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.IndexStats{}, got)
}
