// Package model defines the value types shared by the index store,
// synchronizer, and search engine. These are plain records with no behavior.
package model

import "time"

// Track is one record of the authoritative track list supplied by the caller.
// Filename is the stable unique identifier; LastModified is the
// change-detection marker in epoch milliseconds (0 means unknown and is
// always treated as stale).
type Track struct {
	Filename     string
	Title        string
	Artist       string
	Album        string
	HasLyrics    bool
	LastModified int64
	Locator      string // opaque handle understood by the lyrics gateway
}

// IndexEntry is one stored row of the search index, keyed by Filename.
// Title, Artist, Album, and LyricsContent are stored lower-cased for
// case-insensitive containment search; the *Len fields keep the original
// character counts for analytics.
type IndexEntry struct {
	Filename      string
	Title         string
	Artist        string
	Album         string
	LyricsContent string
	HasLyrics     bool // whether LyricsContent is present (distinct from empty)
	TitleLen      int
	ArtistLen     int
	AlbumLen      int
	LyricsLen     int
	LastModified  int64
}

// IndexStats is an aggregate snapshot computed from the entries table plus
// the last_updated metadata key. It is never stored as its own row set.
type IndexStats struct {
	TotalEntries      int
	EntriesWithLyrics int
	TotalLyricsChars  int64
	LastUpdated       time.Time
	HasLastUpdated    bool
}

// MatchField identifies which field a search result matched on.
type MatchField string

const (
	MatchTitle  MatchField = "title"
	MatchArtist MatchField = "artist"
	MatchAlbum  MatchField = "album"
	MatchLyrics MatchField = "lyrics"
)

// SearchResult is one deduplicated search hit. MatchedText is the query
// substring for metadata matches, or the first matching lyric line with
// timing markers stripped for lyrics matches.
type SearchResult struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	Field       MatchField
	MatchedText string
}

// ReconcileSummary reports what a reconciliation pass did.
type ReconcileSummary struct {
	Added            int
	Updated          int
	Removed          int
	Skipped          int
	Extracted        int
	ExtractionErrors int
	Duration         time.Duration
}
