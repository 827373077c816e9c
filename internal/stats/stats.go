// Package stats computes aggregate snapshots of the index. Totals are
// recomputed from the entries table at read time rather than maintained
// incrementally, so they are always consistent with the table contents.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

// Aggregator reads index statistics from the store.
type Aggregator struct {
	store *store.Store
}

// New creates an Aggregator over st.
func New(st *store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Stats returns entry count, lyrics-bearing entry count, summed lyrics
// length, and the last reconciliation time. An unopened store yields the
// zero-value snapshot, not an error.
func (a *Aggregator) Stats(ctx context.Context) (model.IndexStats, error) {
	var result model.IndexStats

	total, withLyrics, lyricsChars, err := a.store.Aggregate(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to aggregate entries: %w", err)
	}
	result.TotalEntries = total
	result.EntriesWithLyrics = withLyrics
	result.TotalLyricsChars = lyricsChars

	raw, ok, err := a.store.GetMeta(ctx, store.MetaLastUpdated)
	if err != nil {
		return result, fmt.Errorf("failed to read last_updated: %w", err)
	}
	if ok {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// A malformed value means some other writer corrupted the key;
			// report the table totals and leave the timestamp absent.
			return result, nil
		}
		result.LastUpdated = time.UnixMilli(millis)
		result.HasLastUpdated = true
	}
	return result, nil
}
