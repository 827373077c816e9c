// Package trackindex is a per-user, on-device search index for a music
// library. It maps each track's filename to searchable metadata (title,
// artist, album, extracted lyrics text), supports fast substring search
// across selectable fields, and resynchronizes incrementally against the
// live track list so lyric extraction work is only done for new or changed
// tracks.
//
// The index is one SQLite file per user. All matching is substring
// containment over lower-cased columns; there is no tokenization, ranking,
// or inverted index.
package trackindex
