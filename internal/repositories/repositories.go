// package repositories implements SQLite persistence for playlists and
// download metadata.
//
// Schemas are created by the embedded migrations in internal/shared/sql.
// Playlist songs are stored as denormalized snapshots; the composite
// (playlist_id, media_id) primary key enforces the no-duplicate invariant
// at the storage layer as well.
package repositories
