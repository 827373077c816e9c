// Package search answers substring containment queries against the index
// store, merging per-field matches into one deduplicated result list.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/auralite/trackindex/internal/lyrics"
	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

// DefaultCacheSize is the number of recent query results kept in memory.
const DefaultCacheSize = 128

// fieldOrder is the fixed processing order. Lyrics comes last so its
// priority override of metadata matches is deterministic regardless of the
// requested-field ordering.
var fieldOrder = []model.MatchField{
	model.MatchTitle,
	model.MatchArtist,
	model.MatchAlbum,
	model.MatchLyrics,
}

// Engine executes searches against the index store.
type Engine struct {
	store *store.Store
	cache *lru.Cache[string, []model.SearchResult]
}

// NewEngine creates a search engine over st with a result cache of
// cacheSize queries. cacheSize <= 0 selects the default.
func NewEngine(st *store.Store, cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []model.SearchResult](cacheSize)
	return &Engine{store: st, cache: cache}
}

// Search matches query against the requested fields by substring
// containment. An empty query, empty field set, or unopened store yields an
// empty result list without touching storage. Results are deduplicated by
// filename; a lyrics match replaces a metadata match for the same track.
func (e *Engine) Search(ctx context.Context, query string, fields []model.MatchField) ([]model.SearchResult, error) {
	if query == "" || len(fields) == 0 {
		return []model.SearchResult{}, nil
	}
	if !e.store.IsOpen() {
		return []model.SearchResult{}, nil
	}

	q := strings.ToLower(query)
	requested := make(map[model.MatchField]bool, len(fields))
	for _, f := range fields {
		requested[f] = true
	}

	key := cacheKey(e.store.Generation(), q, requested)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	start := time.Now()

	// Collect all per-field matches first, then fold them into a map keyed
	// by filename. Mutating a shared seen-set while iterating fields is how
	// the override rule grows bugs.
	type match struct {
		field model.MatchField
		entry model.IndexEntry
		text  string
	}
	var matches []match
	for _, field := range fieldOrder {
		if !requested[field] {
			continue
		}
		entries, err := e.store.SelectByField(ctx, field, q)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", field, err)
		}
		for _, entry := range entries {
			text := q
			if field == model.MatchLyrics {
				line, ok := lyrics.FirstMatchingLine(entry.LyricsContent, q)
				if !ok {
					continue
				}
				text = line
			}
			matches = append(matches, match{field: field, entry: entry, text: text})
		}
	}

	merged := make(map[string]model.SearchResult, len(matches))
	for _, m := range matches {
		existing, seen := merged[m.entry.Filename]
		if seen {
			// Lyrics matches take display priority over metadata matches
			// for the same track; everything else is first-come.
			if m.field != model.MatchLyrics || existing.Field == model.MatchLyrics {
				continue
			}
		}
		merged[m.entry.Filename] = model.SearchResult{
			Filename:    m.entry.Filename,
			Title:       m.entry.Title,
			Artist:      m.entry.Artist,
			Album:       m.entry.Album,
			Field:       m.field,
			MatchedText: m.text,
		}
	}

	results := make([]model.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Filename < results[j].Filename
	})

	e.cache.Add(key, results)
	slog.Debug("search completed",
		slog.String("query", q),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// cacheKey folds the store generation into the key so every committed write
// invalidates prior results without an explicit flush.
func cacheKey(generation uint64, query string, requested map[model.MatchField]bool) string {
	var mask byte
	for i, f := range fieldOrder {
		if requested[f] {
			mask |= 1 << i
		}
	}
	return fmt.Sprintf("%d|%d|%s", generation, mask, query)
}
