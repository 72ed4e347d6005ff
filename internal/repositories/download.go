package repositories

import (
	"database/sql"
	"fmt"

	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

// DownloadRepository persists completed-download metadata keyed by media id.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Save upserts a download record. Re-downloading a track replaces its
// metadata rather than duplicating the row.
func (r *DownloadRepository) Save(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.Exec(`
		INSERT INTO downloads (media_id, title, uploader, thumbnail, filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET
			title = excluded.title,
			uploader = excluded.uploader,
			thumbnail = excluded.thumbnail,
			filename = excluded.filename,
			created_at = excluded.created_at
	`, record.MediaID, record.Title, record.Uploader, record.Thumbnail, record.Filename, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}

	return nil
}

// Get retrieves a download record by media id.
func (r *DownloadRepository) Get(mediaID string) (*models.DownloadRecord, error) {
	record := &models.DownloadRecord{}

	err := r.db.QueryRow(`
		SELECT media_id, title, uploader, thumbnail, filename, created_at
		FROM downloads
		WHERE media_id = ?
	`, mediaID).Scan(
		&record.MediaID, &record.Title, &record.Uploader,
		&record.Thumbnail, &record.Filename, &record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrDownloadNotFound, mediaID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	return record, nil
}

// List retrieves all download records, newest first.
func (r *DownloadRepository) List() ([]*models.DownloadRecord, error) {
	rows, err := r.db.Query(`
		SELECT media_id, title, uploader, thumbnail, filename, created_at
		FROM downloads
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		record := &models.DownloadRecord{}
		if err := rows.Scan(
			&record.MediaID, &record.Title, &record.Uploader,
			&record.Thumbnail, &record.Filename, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
