package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

// downloadChunkSize bounds per-download memory while copying the body.
const downloadChunkSize = 32 * 1024

// TrackResolver resolves a media id into a playable source.
// Satisfied by [resolver.Resolver].
type TrackResolver interface {
	Resolve(ctx context.Context, mediaID string) (*models.ResolvedTrack, error)
}

// DownloadStore persists completed download records.
// Satisfied by [repositories.DownloadRepository].
type DownloadStore interface {
	Save(record *models.DownloadRecord) error
}

// DownloadEngine fetches a resolved track's bytes into local storage and
// records its metadata for the library listing.
type DownloadEngine struct {
	resolver TrackResolver
	store    DownloadStore
	client   *http.Client
	dir      string
	logger   *log.Logger
}

// NewDownloadEngine creates a download engine writing into dir.
func NewDownloadEngine(r TrackResolver, store DownloadStore, client *http.Client, dir string, logger *log.Logger) *DownloadEngine {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DownloadEngine{resolver: r, store: store, client: client, dir: dir, logger: logger}
}

// Download resolves the media id and streams the chosen source to disk.
// report receives the byte fraction when the origin reports a length.
// A partially written file is removed on any failure.
func (e *DownloadEngine) Download(ctx context.Context, mediaID string, report func(float64)) (*models.DownloadRecord, error) {
	track, err := e.resolver.Resolve(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	filename := downloadFilename(track)
	path := filepath.Join(e.dir, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.Chosen.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: origin status %d", shared.ErrSourceUnavailable, resp.StatusCode)
	}

	if err := e.writeFile(path, resp.Body, resp.ContentLength, report); err != nil {
		os.Remove(path)
		return nil, err
	}

	record := &models.DownloadRecord{
		MediaID:   mediaID,
		Title:     track.Title,
		Uploader:  track.Uploader,
		Thumbnail: track.ThumbnailURL,
		Filename:  filename,
		CreatedAt: time.Now(),
	}

	if err := e.store.Save(record); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to record download: %w", err)
	}

	e.logger.Info("track downloaded", "media_id", mediaID, "file", filename)
	return record, nil
}

// writeFile copies the body to path in bounded chunks, reporting the byte
// fraction when total is known.
func (e *DownloadEngine) writeFile(path string, body io.Reader, total int64, report func(float64)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	var dst io.Writer = f
	if report != nil && total > 0 {
		dst = io.MultiWriter(f, &progressWriter{total: total, report: report})
	}

	buf := make([]byte, downloadChunkSize)
	_, copyErr := io.CopyBuffer(dst, body, buf)
	closeErr := f.Close()

	if copyErr != nil {
		return fmt.Errorf("%w: transfer interrupted: %v", shared.ErrSourceUnavailable, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize file: %w", closeErr)
	}
	return nil
}

// downloadFilename derives a safe local filename from the resolved track.
func downloadFilename(track *models.ResolvedTrack) string {
	name := shared.SanitizeFilename(track.Title)
	if name == "" {
		name = track.MediaID
	}
	ext := track.Chosen.Container
	if ext == "" {
		ext = "m4a"
	}
	return name + "." + ext
}

// progressWriter converts written byte counts into a fraction.
type progressWriter struct {
	written int64
	total   int64
	report  func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	p.report(float64(p.written) / float64(p.total))
	return len(b), nil
}
