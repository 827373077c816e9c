package store

import "database/sql"

// Metadata keys maintained by the synchronizer.
const (
	// MetaLastUpdated is the epoch-millisecond timestamp of the last
	// successful reconciliation.
	MetaLastUpdated = "last_updated"
	// MetaTotalEntries is the track count recorded by the last
	// reconciliation.
	MetaTotalEntries = "total_entries"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// initSchema creates the entries and metadata tables plus the secondary
// indexes that keep substring scans fast. Idempotent.
func initSchema(db *sql.DB) error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per track, keyed by filename.
	-- title/artist/album/lyrics_content are stored lower-cased so LIKE
	-- containment scans are case-insensitive without COLLATE tricks.
	-- lyrics_content and lyrics_len are NULL together when a track has no
	-- extracted lyrics.
	CREATE TABLE IF NOT EXISTS entries (
		filename       TEXT PRIMARY KEY,
		title          TEXT NOT NULL DEFAULT '',
		artist         TEXT NOT NULL DEFAULT '',
		album          TEXT NOT NULL DEFAULT '',
		lyrics_content TEXT,
		title_len      INTEGER NOT NULL DEFAULT 0,
		artist_len     INTEGER NOT NULL DEFAULT 0,
		album_len      INTEGER NOT NULL DEFAULT 0,
		lyrics_len     INTEGER,
		last_modified  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_title  ON entries(title);
	CREATE INDEX IF NOT EXISTS idx_entries_artist ON entries(artist);
	CREATE INDEX IF NOT EXISTS idx_entries_album  ON entries(album);
	CREATE INDEX IF NOT EXISTS idx_entries_lyrics ON entries(lyrics_content);

	-- Singleton key/value rows: last_updated, total_entries.
	CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := db.Exec(schema)
	return err
}
