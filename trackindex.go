package trackindex

import (
	"context"

	"github.com/auralite/trackindex/internal/lifecycle"
	"github.com/auralite/trackindex/internal/lyrics"
	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/reconcile"
	"github.com/auralite/trackindex/internal/search"
	"github.com/auralite/trackindex/internal/stats"
	"github.com/auralite/trackindex/internal/store"
)

// Value types of the index API.
type (
	// Track is one record of the authoritative track list.
	Track = model.Track
	// IndexEntry is one stored row of the index.
	IndexEntry = model.IndexEntry
	// IndexStats is an aggregate snapshot of the index.
	IndexStats = model.IndexStats
	// SearchResult is one deduplicated search hit.
	SearchResult = model.SearchResult
	// MatchField identifies which field a result matched on.
	MatchField = model.MatchField
	// ReconcileSummary reports what a reconciliation pass did.
	ReconcileSummary = model.ReconcileSummary
)

// Searchable fields.
const (
	MatchTitle  = model.MatchTitle
	MatchArtist = model.MatchArtist
	MatchAlbum  = model.MatchAlbum
	MatchLyrics = model.MatchLyrics
)

// LyricsGateway extracts raw time-tagged lyric text for a track locator.
// An empty string with a nil error means the track has no lyrics; any error
// is treated identically to "no lyrics available".
type LyricsGateway interface {
	Extract(ctx context.Context, locator string) (string, error)
}

// Options configures an Index.
type Options struct {
	// DataDir is where per-user store files live. Empty selects in-memory
	// stores (useful for tests).
	DataDir string
	// Gateway extracts lyrics for new/changed tracks. Nil disables
	// extraction; tracks are then indexed without lyrics.
	Gateway LyricsGateway
	// ExtractConcurrency bounds parallel gateway calls (default 4).
	ExtractConcurrency int
	// SearchCacheSize is the number of recent query results cached
	// (default 128).
	SearchCacheSize int
}

// Index is the assembled search index: store, synchronizer, search engine,
// stats aggregator, and lifecycle manager behind one handle. Callers are
// expected to invoke operations sequentially; the index does not coordinate
// concurrent callers.
type Index struct {
	store     *store.Store
	manager   *lifecycle.Manager
	sync      *reconcile.Synchronizer
	engine    *search.Engine
	aggregate *stats.Aggregator
}

// New assembles an Index. No store file is opened until Open.
func New(opts Options) *Index {
	st := store.New(opts.DataDir)

	var gw lyrics.Gateway
	if opts.Gateway != nil {
		gw = lyrics.GatewayFunc(opts.Gateway.Extract)
	}

	var syncOpts []reconcile.Option
	if opts.ExtractConcurrency > 0 {
		syncOpts = append(syncOpts, reconcile.WithExtractConcurrency(opts.ExtractConcurrency))
	}

	return &Index{
		store:     st,
		manager:   lifecycle.New(opts.DataDir, st),
		sync:      reconcile.New(st, gw, syncOpts...),
		engine:    search.NewEngine(st, opts.SearchCacheSize),
		aggregate: stats.New(st),
	}
}

// Open opens (creating if absent) the store for userID. Idempotent for the
// same user; switching users closes the previous store first.
func (ix *Index) Open(ctx context.Context, userID string) error {
	return ix.manager.Open(ctx, userID)
}

// Close closes the open store. Safe to call when nothing is open.
func (ix *Index) Close() error {
	return ix.manager.Close()
}

// Reconcile brings the index into agreement with the authoritative track
// list. An empty list is the valid "library is empty" state.
func (ix *Index) Reconcile(ctx context.Context, tracks []Track) (ReconcileSummary, error) {
	return ix.sync.Reconcile(ctx, tracks)
}

// UpsertTrack (re)writes one track outside a full reconciliation.
func (ix *Index) UpsertTrack(ctx context.Context, track Track) error {
	return ix.sync.UpsertSingle(ctx, track)
}

// RemoveTrack deletes one entry by filename.
func (ix *Index) RemoveTrack(ctx context.Context, filename string) error {
	return ix.sync.RemoveSingle(ctx, filename)
}

// Search matches query against the requested fields by substring
// containment. Empty query or field set yields an empty result list.
func (ix *Index) Search(ctx context.Context, query string, fields []MatchField) ([]SearchResult, error) {
	return ix.engine.Search(ctx, query, fields)
}

// Stats returns the aggregate snapshot of the index.
func (ix *Index) Stats(ctx context.Context) (IndexStats, error) {
	return ix.aggregate.Stats(ctx)
}

// Clear deletes all entries and metadata from the open store.
func (ix *Index) Clear(ctx context.Context) error {
	return ix.store.Clear(ctx)
}

// FilePath returns the store file path for userID if the file exists.
func (ix *Index) FilePath(userID string) (string, bool) {
	return ix.manager.FilePath(userID)
}

// DeleteFile removes the store file for userID outright.
func (ix *Index) DeleteFile(userID string) error {
	return ix.manager.DeleteFile(userID)
}
