package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

var allFields = []model.MatchField{
	model.MatchTitle,
	model.MatchArtist,
	model.MatchAlbum,
	model.MatchLyrics,
}

func setup(t *testing.T) (*store.Store, *Engine) {
	t.Helper()

	st := store.New(t.TempDir())
	require.NoError(t, st.Open(context.Background(), "alice"))
	t.Cleanup(func() { _ = st.Close() })
	return st, NewEngine(st, 0)
}

// seed writes an entry the way the synchronizer would: searchable fields
// lower-cased.
func seed(t *testing.T, st *store.Store, filename, title, artist, album, lyricsContent string) {
	t.Helper()

	e := model.IndexEntry{
		Filename: filename,
		Title:    title,
		Artist:   artist,
		Album:    album,
	}
	if lyricsContent != "" {
		e.LyricsContent = lyricsContent
		e.HasLyrics = true
		e.LyricsLen = len(lyricsContent)
	}
	require.NoError(t, st.UpsertOne(context.Background(), e))
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, engine := setup(t)

	results, err := engine.Search(context.Background(), "", allFields)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_NoFields(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "hello", "", "", "")

	results, err := engine.Search(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_StoreNotOpen(t *testing.T) {
	st := store.New(t.TempDir())
	engine := NewEngine(st, 0)

	results, err := engine.Search(context.Background(), "anything", allFields)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TitleMatch(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "bohemian rhapsody", "queen", "a night at the opera", "")
	seed(t, st, "b.mp3", "somebody to love", "queen", "a day at the races", "")

	results, err := engine.Search(context.Background(), "rhapsody", []model.MatchField{model.MatchTitle})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.mp3", results[0].Filename)
	assert.Equal(t, model.MatchTitle, results[0].Field)
	assert.Equal(t, "rhapsody", results[0].MatchedText)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "bohemian rhapsody", "queen", "", "")

	results, err := engine.Search(context.Background(), "RHAPsody", []model.MatchField{model.MatchTitle})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearch_FieldSelectionIsIndependent(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "queen of hearts", "juice newton", "", "")
	seed(t, st, "b.mp3", "somebody to love", "queen", "", "")

	// Only the artist field is searched; a.mp3's title match is invisible.
	results, err := engine.Search(context.Background(), "queen", []model.MatchField{model.MatchArtist})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.mp3", results[0].Filename)
}

func TestSearch_LyricsDisplayLineStripsTimestamps(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "title", "artist", "album", "[00:12.50]hello world\n[00:15]next line")

	results, err := engine.Search(context.Background(), "hello", []model.MatchField{model.MatchLyrics})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchLyrics, results[0].Field)
	assert.Equal(t, "hello world", results[0].MatchedText)
}

func TestSearch_LyricsOverridesMetadataMatch(t *testing.T) {
	st, engine := setup(t)
	// Title and lyrics both contain the query; the track must appear once,
	// tagged as a lyrics match.
	seed(t, st, "a.mp3", "love of my life", "queen", "", "[01:00]love dies hard")

	results, err := engine.Search(context.Background(), "love", allFields)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchLyrics, results[0].Field)
	assert.Equal(t, "love dies hard", results[0].MatchedText)
}

func TestSearch_OverrideIndependentOfRequestedOrder(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "love of my life", "queen", "", "[01:00]love dies hard")

	reversed := []model.MatchField{model.MatchLyrics, model.MatchAlbum, model.MatchArtist, model.MatchTitle}
	results, err := engine.Search(context.Background(), "love", reversed)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchLyrics, results[0].Field)
}

func TestSearch_MetadataDedupIsFirstCome(t *testing.T) {
	st, engine := setup(t)
	// Both title and artist contain the query; the title match is reported
	// because title is processed first.
	seed(t, st, "a.mp3", "queen bee", "queen", "", "")

	results, err := engine.Search(context.Background(), "queen", allFields)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchTitle, results[0].Field)
}

func TestSearch_ResultsOrderedByFilename(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "c.mp3", "common song", "", "", "")
	seed(t, st, "a.mp3", "common tune", "", "", "")
	seed(t, st, "b.mp3", "common track", "", "", "")

	results, err := engine.Search(context.Background(), "common", []model.MatchField{model.MatchTitle})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a.mp3", results[0].Filename)
	assert.Equal(t, "b.mp3", results[1].Filename)
	assert.Equal(t, "c.mp3", results[2].Filename)
}

func TestSearch_CacheInvalidatedByWrite(t *testing.T) {
	st, engine := setup(t)
	ctx := context.Background()
	seed(t, st, "a.mp3", "hello", "", "", "")

	results, err := engine.Search(ctx, "hello", allFields)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Cached result served for the same generation.
	again, err := engine.Search(ctx, "hello", allFields)
	require.NoError(t, err)
	assert.Equal(t, results, again)

	// A write bumps the generation; the next search sees the new row.
	seed(t, st, "b.mp3", "hello again", "", "", "")
	after, err := engine.Search(ctx, "hello", allFields)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestSearch_NoMatches(t *testing.T) {
	st, engine := setup(t)
	seed(t, st, "a.mp3", "hello", "", "", "")

	results, err := engine.Search(context.Background(), "zzz", allFields)
	require.NoError(t, err)
	assert.Empty(t, results)
}
