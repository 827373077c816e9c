// Package reconcile brings the index store into agreement with the
// authoritative track list while doing the minimum amount of lyric
// re-extraction.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	indexerrors "github.com/auralite/trackindex/internal/errors"
	"github.com/auralite/trackindex/internal/lyrics"
	"github.com/auralite/trackindex/internal/model"
	"github.com/auralite/trackindex/internal/store"
)

// DefaultExtractConcurrency bounds parallel gateway calls per pass.
const DefaultExtractConcurrency = 4

// Synchronizer reconciles the store against an authoritative track list.
// All methods are safe to call on an unopened store; mutations then degrade
// to no-ops.
type Synchronizer struct {
	store       *store.Store
	gateway     lyrics.Gateway
	concurrency int
	now         func() time.Time // injectable for tests
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithExtractConcurrency bounds the number of concurrent gateway calls.
func WithExtractConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// New creates a Synchronizer. gateway may be nil when the caller has no
// lyric extraction capability; tracks are then indexed without lyrics.
func New(st *store.Store, gateway lyrics.Gateway, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:       st,
		gateway:     gateway,
		concurrency: DefaultExtractConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile diffs tracks against the stored entries and applies the result:
// stale entries removed, new/changed tracks (re)written, unchanged tracks
// untouched. Removals and upserts commit in one transaction; the metadata
// keys are written after the commit. An empty track list is the valid
// "library is empty" state, not an error.
func (s *Synchronizer) Reconcile(ctx context.Context, tracks []model.Track) (model.ReconcileSummary, error) {
	start := s.now()
	var summary model.ReconcileSummary

	if !s.store.IsOpen() {
		slog.Debug("reconcile skipped: store not open")
		return summary, nil
	}

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load snapshot: %w", err)
	}

	// Entries present in the store but absent from the authoritative list.
	current := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		current[t.Filename] = struct{}{}
	}
	var toRemove []string
	for filename := range snapshot {
		if _, ok := current[filename]; !ok {
			toRemove = append(toRemove, filename)
		}
	}
	sort.Strings(toRemove)

	// Decide per track: skip, rewrite with reused lyrics, or rewrite after
	// extraction. Extraction targets are collected first so gateway calls
	// can run with bounded concurrency before the single write transaction.
	var upserts []model.IndexEntry
	var pending []int // indexes into upserts that still need extraction
	for _, track := range tracks {
		prev, exists := snapshot[track.Filename]
		if exists && track.LastModified != 0 && track.LastModified == prev.LastModified {
			summary.Skipped++
			continue
		}

		entry := buildEntry(track)
		switch {
		case exists && prev.HasLyrics:
			// Metadata changed but lyrics were already extracted; reuse
			// them verbatim instead of hitting the gateway again.
			entry.LyricsContent = prev.LyricsContent
			entry.HasLyrics = true
			entry.LyricsLen = utf8.RuneCountInString(prev.LyricsContent)
		case track.HasLyrics && s.gateway != nil:
			pending = append(pending, len(upserts))
		}

		if exists {
			summary.Updated++
		} else {
			summary.Added++
		}
		upserts = append(upserts, entry)
	}

	extracted, extractionErrors := s.extractPending(ctx, tracks, upserts, pending)
	summary.Extracted = extracted
	summary.ExtractionErrors = extractionErrors

	// One transaction covers removals and upserts: either the store
	// reflects the full reconciled state or the prior state.
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return summary, err
	}
	if tx == nil {
		return summary, nil
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.store.DeleteByKeys(ctx, tx, toRemove); err != nil {
		return summary, fmt.Errorf("failed to delete removed entries: %w", err)
	}
	if err := s.store.UpsertMany(ctx, tx, upserts); err != nil {
		return summary, fmt.Errorf("failed to upsert entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return summary, indexerrors.StorageError("failed to commit reconciliation", err)
	}
	s.store.Committed()
	summary.Removed = len(toRemove)

	if err := s.store.SetMeta(ctx, store.MetaLastUpdated,
		strconv.FormatInt(s.now().UnixMilli(), 10)); err != nil {
		return summary, err
	}
	if err := s.store.SetMeta(ctx, store.MetaTotalEntries,
		strconv.Itoa(len(tracks))); err != nil {
		return summary, err
	}

	summary.Duration = s.now().Sub(start)
	slog.Info("reconcile completed",
		slog.Int("added", summary.Added),
		slog.Int("updated", summary.Updated),
		slog.Int("removed", summary.Removed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("extracted", summary.Extracted),
		slog.Int("extraction_errors", summary.ExtractionErrors),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

// extractPending runs gateway extraction for the pending upsert slots with
// bounded concurrency. Failures are absorbed per track: the slot keeps no
// lyrics and the batch continues.
func (s *Synchronizer) extractPending(ctx context.Context, tracks []model.Track, upserts []model.IndexEntry, pending []int) (extracted, failed int) {
	if len(pending) == 0 {
		return 0, 0
	}

	// upserts was built in track order with skips removed; map each pending
	// slot back to its track via the filename.
	locators := make(map[string]model.Track, len(tracks))
	for _, t := range tracks {
		locators[t.Filename] = t
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, idx := range pending {
		idx := idx
		g.Go(func() error {
			track := locators[upserts[idx].Filename]
			raw, err := s.gateway.Extract(gctx, track.Locator)
			if err != nil {
				ee := indexerrors.ExtractionError("lyrics extraction failed", err).
					WithDetail("filename", track.Filename)
				slog.Warn(ee.Message,
					slog.String("code", ee.Code),
					slog.String("filename", track.Filename),
					slog.String("error", err.Error()))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // per-track failure never aborts the batch
			}
			normalized := lyrics.Normalize(raw)
			if normalized == "" {
				return nil
			}
			mu.Lock()
			upserts[idx].LyricsContent = normalized
			upserts[idx].HasLyrics = true
			upserts[idx].LyricsLen = utf8.RuneCountInString(normalized)
			extracted++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers only return nil
	return extracted, failed
}

// UpsertSingle (re)writes one track outside a full reconciliation, using the
// same lyric-reuse-then-extract policy as Reconcile. It is not transactional
// with anything else.
func (s *Synchronizer) UpsertSingle(ctx context.Context, track model.Track) error {
	if !s.store.IsOpen() {
		slog.Debug("upsert skipped: store not open",
			slog.String("filename", track.Filename))
		return nil
	}

	prev, exists, err := s.store.SnapshotOne(ctx, track.Filename)
	if err != nil {
		return err
	}

	entry := buildEntry(track)
	switch {
	case exists && prev.HasLyrics:
		entry.LyricsContent = prev.LyricsContent
		entry.HasLyrics = true
		entry.LyricsLen = utf8.RuneCountInString(prev.LyricsContent)
	case track.HasLyrics && s.gateway != nil:
		raw, err := s.gateway.Extract(ctx, track.Locator)
		if err != nil {
			slog.Warn("lyrics extraction failed",
				slog.String("filename", track.Filename),
				slog.String("error", err.Error()))
		} else if normalized := lyrics.Normalize(raw); normalized != "" {
			entry.LyricsContent = normalized
			entry.HasLyrics = true
			entry.LyricsLen = utf8.RuneCountInString(normalized)
		}
	}

	return s.store.UpsertOne(ctx, entry)
}

// RemoveSingle deletes one entry by filename.
func (s *Synchronizer) RemoveSingle(ctx context.Context, filename string) error {
	return s.store.DeleteByKeys(ctx, nil, []string{filename})
}

// buildEntry converts a track into its stored row: searchable fields
// lower-cased, original character counts preserved, no lyrics yet.
func buildEntry(track model.Track) model.IndexEntry {
	return model.IndexEntry{
		Filename:     track.Filename,
		Title:        strings.ToLower(track.Title),
		Artist:       strings.ToLower(track.Artist),
		Album:        strings.ToLower(track.Album),
		TitleLen:     utf8.RuneCountInString(track.Title),
		ArtistLen:    utf8.RuneCountInString(track.Artist),
		AlbumLen:     utf8.RuneCountInString(track.Album),
		LastModified: track.LastModified,
	}
}
