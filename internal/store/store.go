// Package store owns the per-user SQLite search index file: its schema and
// the raw persistence primitives used by the synchronizer, search engine,
// and stats aggregator. It is the only package that touches database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	indexerrors "github.com/auralite/trackindex/internal/errors"
	"github.com/auralite/trackindex/internal/model"
)

const (
	// DeleteChunkSize caps the number of host parameters per DELETE
	// statement. SQLite's default ceiling is 999; chunks stay well below it.
	DeleteChunkSize = 500

	// maxHostParams is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
	maxHostParams = 999
)

// Field names accepted by SelectByField, mapped to their columns.
// A whitelist keeps caller-supplied field selection out of SQL text.
var fieldColumns = map[model.MatchField]string{
	model.MatchTitle:  "title",
	model.MatchArtist: "artist",
	model.MatchAlbum:  "album",
	model.MatchLyrics: "lyrics_content",
}

// EntrySnapshot is the slice of an entry the synchronizer needs to diff
// against the authoritative track list.
type EntrySnapshot struct {
	LastModified  int64
	LyricsContent string
	HasLyrics     bool
}

// Store is the per-user search index store. One SQLite file per user,
// exclusively owned by whoever opened it; opening for a different user
// closes the previous handle first.
//
// Operations on a store that was never opened degrade instead of failing:
// mutations are no-ops, reads return empty results. The surrounding app
// calls search speculatively and must not crash on an uninitialized index.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	dataDir string
	userID  string
	path    string

	// generation is bumped on every committed mutation; the search engine
	// keys its result cache on it so stale hits age out on write.
	generation atomic.Uint64
}

// New creates a store rooted at dataDir. No file is opened until Open.
// An empty dataDir selects in-memory databases (used by tests).
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// UserDBPath returns the deterministic per-user database file path.
// The file lives in the app's private documents area and is excluded from
// device backup by the app layer.
func UserDBPath(dataDir, userID string) string {
	return filepath.Join(dataDir, "search_index_"+sanitizeUser(userID)+".db")
}

// sanitizeUser maps a user identifier to a filesystem-safe token.
func sanitizeUser(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, userID)
}

// Open opens (creating if absent) the store file for userID and initializes
// the schema. Idempotent: reopening for the same user is a no-op; opening
// for a different user closes the previous handle first.
func (s *Store) Open(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && s.userID == userID {
		return nil
	}
	if s.db != nil {
		slog.Debug("closing previous index store",
			slog.String("user", s.userID))
		_ = s.db.Close()
		s.db = nil
	}

	var dsn string
	if s.dataDir == "" {
		dsn = ":memory:"
		s.path = ""
	} else {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", s.dataDir, err)
		}
		s.path = UserDBPath(s.dataDir, userID)
		dsn = s.path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return indexerrors.New(indexerrors.ErrCodeStoreOpenFailed,
			"failed to open database", err).WithDetail("user", userID)
	}

	// Single writer to prevent lock contention; the store has one logical
	// owner and SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return indexerrors.New(indexerrors.ErrCodeStoreOpenFailed,
				"failed to set pragma", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return indexerrors.New(indexerrors.ErrCodeStoreOpenFailed,
			"failed to initialize schema", err)
	}

	s.db = db
	s.userID = userID
	s.generation.Add(1)

	slog.Info("index store opened",
		slog.String("user", userID),
		slog.String("path", s.path))
	return nil
}

// Close releases the underlying connection. Safe to call when already
// closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	s.userID = ""
	return err
}

// IsOpen reports whether a store file is currently open.
func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// UserID returns the user the store is currently open for.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Path returns the open database file path (empty for in-memory stores).
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Generation returns a counter bumped on every committed mutation.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Begin starts a write transaction. Returns sql.ErrConnDone-like failure
// only on storage errors; on an unopened store it returns nil, nil so
// callers can treat the whole mutation as a no-op.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		slog.Debug("begin skipped: store not open")
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, indexerrors.StorageError("failed to begin transaction", err)
	}
	return tx, nil
}

// Committed records a successful commit of a transaction obtained from
// Begin, invalidating read caches layered above the store.
func (s *Store) Committed() {
	s.generation.Add(1)
}

// UpsertMany writes a batch of entries inside the given transaction using
// replace-on-conflict semantics. A nil transaction means the store was not
// open and the batch is silently dropped.
func (s *Store) UpsertMany(ctx context.Context, tx *sql.Tx, entries []model.IndexEntry) error {
	if tx == nil || len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entries
			(filename, title, artist, album, lyrics_content,
			 title_len, artist_len, album_len, lyrics_len, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		lyrics := sql.NullString{String: e.LyricsContent, Valid: e.HasLyrics}
		lyricsLen := sql.NullInt64{Int64: int64(e.LyricsLen), Valid: e.HasLyrics}
		if _, err := stmt.ExecContext(ctx,
			e.Filename, e.Title, e.Artist, e.Album, lyrics,
			e.TitleLen, e.ArtistLen, e.AlbumLen, lyricsLen, e.LastModified,
		); err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", e.Filename, err)
		}
	}
	return nil
}

// UpsertOne writes a single entry in its own transaction.
func (s *Store) UpsertOne(ctx context.Context, entry model.IndexEntry) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.UpsertMany(ctx, tx, []model.IndexEntry{entry}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return indexerrors.StorageError("failed to commit upsert", err)
	}
	s.Committed()
	return nil
}

// DeleteByKeys deletes all entries whose filename is in keys, partitioning
// keys into chunks so no single statement exceeds the host parameter
// ceiling. When tx is non-nil the deletes join the caller's transaction.
func (s *Store) DeleteByKeys(ctx context.Context, tx *sql.Tx, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if tx == nil {
		// Standalone path: run in an own transaction so multi-chunk
		// deletes stay atomic.
		own, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		if own == nil {
			return nil
		}
		defer func() { _ = own.Rollback() }()
		if err := s.DeleteByKeys(ctx, own, keys); err != nil {
			return err
		}
		if err := own.Commit(); err != nil {
			return indexerrors.StorageError("failed to commit delete", err)
		}
		s.Committed()
		return nil
	}

	for start := 0; start < len(keys); start += DeleteChunkSize {
		end := start + DeleteChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		// Unreachable by construction; kept as the invariant the chunk
		// loop exists to uphold.
		if len(chunk) > maxHostParams {
			return indexerrors.New(indexerrors.ErrCodeChunkLimit,
				fmt.Sprintf("delete chunk of %d exceeds host parameter limit %d", len(chunk), maxHostParams), nil)
		}

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, key := range chunk {
			placeholders[i] = "?"
			args[i] = key
		}
		query := fmt.Sprintf("DELETE FROM entries WHERE filename IN (%s)",
			strings.Join(placeholders, ","))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete chunk: %w", err)
		}
	}
	return nil
}

// Snapshot reads filename, last_modified, and lyrics_content for every
// entry in one query. This is the synchronizer's "before" view.
func (s *Store) Snapshot(ctx context.Context) (map[string]EntrySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]EntrySnapshot)
	if s.db == nil {
		return snap, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, last_modified, lyrics_content FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		var lastModified int64
		var lyrics sql.NullString
		if err := rows.Scan(&filename, &lastModified, &lyrics); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap[filename] = EntrySnapshot{
			LastModified:  lastModified,
			LyricsContent: lyrics.String,
			HasLyrics:     lyrics.Valid,
		}
	}
	return snap, rows.Err()
}

// SnapshotOne reads the snapshot slice for a single filename.
// The second return reports whether an entry exists.
func (s *Store) SnapshotOne(ctx context.Context, filename string) (EntrySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return EntrySnapshot{}, false, nil
	}

	var lastModified int64
	var lyrics sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_modified, lyrics_content FROM entries WHERE filename = ?`,
		filename).Scan(&lastModified, &lyrics)
	if err == sql.ErrNoRows {
		return EntrySnapshot{}, false, nil
	}
	if err != nil {
		return EntrySnapshot{}, false, fmt.Errorf("failed to read entry %s: %w", filename, err)
	}
	return EntrySnapshot{
		LastModified:  lastModified,
		LyricsContent: lyrics.String,
		HasLyrics:     lyrics.Valid,
	}, true, nil
}

// SelectByField returns all entries whose column for field contains substr.
// The stored columns are lower-cased, so substr must be lower-cased by the
// caller. Unknown fields and unopened stores yield empty results.
func (s *Store) SelectByField(ctx context.Context, field model.MatchField, substr string) ([]model.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, nil
	}
	column, ok := fieldColumns[field]
	if !ok {
		return nil, nil
	}

	// ESCAPE so user input containing LIKE wildcards matches literally.
	query := fmt.Sprintf(`
		SELECT filename, title, artist, album, lyrics_content,
		       title_len, artist_len, album_len, lyrics_len, last_modified
		FROM entries
		WHERE %s LIKE '%%' || ? || '%%' ESCAPE '\'
	`, column)

	rows, err := s.db.QueryContext(ctx, query, escapeLike(substr))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", column, err)
	}
	defer rows.Close()

	var entries []model.IndexEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SelectAll returns every entry, ordered by filename.
func (s *Store) SelectAll(ctx context.Context) ([]model.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, title, artist, album, lyrics_content,
		       title_len, artist_len, album_len, lyrics_len, last_modified
		FROM entries ORDER BY filename
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.IndexEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Aggregate computes entry count, lyrics-bearing entry count, and summed
// lyrics length in one query.
func (s *Store) Aggregate(ctx context.Context) (total, withLyrics int, lyricsChars int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, 0, 0, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(lyrics_content),
		       COALESCE(SUM(lyrics_len), 0)
		FROM entries
	`)
	if err := row.Scan(&total, &withLyrics, &lyricsChars); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to aggregate entries: %w", err)
	}
	return total, withLyrics, lyricsChars, nil
}

// GetMeta reads one metadata key. The second return reports presence.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return "", false, nil
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta upserts one metadata key. No-op on an unopened store.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		slog.Debug("set metadata skipped: store not open", slog.String("key", key))
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	s.generation.Add(1)
	return nil
}

// Clear deletes all rows from both tables in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return indexerrors.StorageError("failed to commit clear", err)
	}
	s.Committed()
	return nil
}

// escapeLike escapes LIKE wildcards so substr matches literally.
func escapeLike(substr string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(substr)
}

// scanEntry scans one row of the full entries column list.
func scanEntry(rows *sql.Rows) (model.IndexEntry, error) {
	var e model.IndexEntry
	var lyrics sql.NullString
	var lyricsLen sql.NullInt64
	if err := rows.Scan(
		&e.Filename, &e.Title, &e.Artist, &e.Album, &lyrics,
		&e.TitleLen, &e.ArtistLen, &e.AlbumLen, &lyricsLen, &e.LastModified,
	); err != nil {
		return model.IndexEntry{}, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.LyricsContent = lyrics.String
	e.HasLyrics = lyrics.Valid
	e.LyricsLen = int(lyricsLen.Int64)
	return e, nil
}
