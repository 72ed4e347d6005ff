package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

// PlaylistRepository persists playlist aggregates and their song snapshots.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a playlist and all of its songs in one transaction.
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO playlists (id, name, created_at) VALUES (?, ?, ?)",
		playlist.ID, playlist.Name, playlist.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	for i, song := range playlist.Songs {
		if _, err := tx.Exec(`
			INSERT INTO playlist_tracks (playlist_id, media_id, title, uploader, thumbnail, duration, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, playlist.ID, song.MediaID, song.Title, song.Uploader, song.ThumbnailURL, song.Duration, i); err != nil {
			return fmt.Errorf("failed to insert song %s: %w", song.MediaID, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a playlist with its songs in stored order.
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	playlist := &models.Playlist{Songs: []models.TrackRef{}}

	var createdAt time.Time
	err := r.db.QueryRow(
		"SELECT id, name, created_at FROM playlists WHERE id = ?", id,
	).Scan(&playlist.ID, &playlist.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	playlist.CreatedAt = createdAt

	songs, err := r.songsFor(id)
	if err != nil {
		return nil, err
	}
	playlist.Songs = songs

	return playlist, nil
}

// List retrieves all playlists with their songs, oldest first.
func (r *PlaylistRepository) List() ([]*models.Playlist, error) {
	rows, err := r.db.Query("SELECT id, name, created_at FROM playlists ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p := &models.Playlist{Songs: []models.TrackRef{}}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, p := range playlists {
		songs, err := r.songsFor(p.ID)
		if err != nil {
			return nil, err
		}
		p.Songs = songs
	}

	return playlists, nil
}

// Delete removes a playlist; its songs cascade.
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

// AddSong appends a song snapshot to an existing playlist.
// Returns false when the media id is already present (duplicate suppression).
func (r *PlaylistRepository) AddSong(playlistID string, song models.TrackRef) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM playlists WHERE id = ?)", playlistID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check playlist: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO playlist_tracks (playlist_id, media_id, title, uploader, thumbnail, duration, position)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?))
	`, playlistID, song.MediaID, song.Title, song.Uploader, song.ThumbnailURL, song.Duration, playlistID)
	if err != nil {
		return false, fmt.Errorf("failed to insert song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// RemoveSong deletes a song from a playlist by media id.
func (r *PlaylistRepository) RemoveSong(playlistID, mediaID string) error {
	result, err := r.db.Exec(
		"DELETE FROM playlist_tracks WHERE playlist_id = ? AND media_id = ?",
		playlistID, mediaID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("song %s not in playlist %s", mediaID, playlistID)
	}

	return nil
}

// songsFor loads a playlist's songs in stored order.
func (r *PlaylistRepository) songsFor(playlistID string) ([]models.TrackRef, error) {
	rows, err := r.db.Query(`
		SELECT media_id, title, uploader, thumbnail, duration
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := []models.TrackRef{}
	for rows.Next() {
		var s models.TrackRef
		if err := rows.Scan(&s.MediaID, &s.Title, &s.Uploader, &s.ThumbnailURL, &s.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return songs, nil
}
