// package tasks implements the long-running pipelines behind background jobs.
//
// The core abstractions are ImportEngine, which orchestrates external playlist
// imports, and DownloadEngine, which fetches single tracks to local storage.
// Both report fractional progress through a caller-supplied callback so the
// job layer stays decoupled from pipeline internals.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/services"
	"github.com/nnaudify/audify/internal/shared"
	"golang.org/x/time/rate"
)

// fallbackPlaylistName is used when neither the caller nor the exporter
// supplies a playlist name.
const fallbackPlaylistName = "Imported Playlist"

// PlaylistStore persists imported playlists.
// Satisfied by [repositories.PlaylistRepository].
type PlaylistStore interface {
	Create(playlist *models.Playlist) error
}

// ImportResult summarizes a completed playlist import.
type ImportResult struct {
	PlaylistID   string `json:"playlist_id"`
	Name         string `json:"name"`
	MatchedCount int    `json:"song_count"`
	TotalCount   int    `json:"total_songs"`
}

// ImportEngine orchestrates an external playlist import: export the song
// list, match each entry against the primary catalog, and persist the
// resulting playlist.
type ImportEngine struct {
	provider services.MetadataProvider
	exporter services.PlaylistExporter
	store    PlaylistStore
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewImportEngine creates an import engine. searchesPerSecond throttles
// provider queries during the match loop; a non-positive value disables
// throttling.
func NewImportEngine(
	provider services.MetadataProvider,
	exporter services.PlaylistExporter,
	store PlaylistStore,
	searchesPerSecond float64,
	logger *log.Logger,
) *ImportEngine {
	var limiter *rate.Limiter
	if searchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(searchesPerSecond), 1)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImportEngine{
		provider: provider,
		exporter: exporter,
		store:    store,
		limiter:  limiter,
		logger:   logger,
	}
}

// ValidatePlaylistURL checks that a URL syntactically names a Spotify
// playlist. No network call is made.
func ValidatePlaylistURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidSource, err)
	}
	if parsed.Host != "open.spotify.com" ||
		!strings.Contains(parsed.Path, "playlist") ||
		len(strings.Split(parsed.Path, "/")) < 3 {
		return fmt.Errorf("%w: %s", shared.ErrInvalidSource, raw)
	}
	return nil
}

// Import runs the full pipeline for one external playlist URL.
//
// Entries are processed in the external playlist's original order. A single
// entry's match failure is logged and skipped, never fatal; cancellation is
// checked between entries. report receives processed/total after each entry.
func (e *ImportEngine) Import(ctx context.Context, playlistURL, customName string, report func(float64)) (*ImportResult, error) {
	if err := ValidatePlaylistURL(playlistURL); err != nil {
		return nil, err
	}

	export, err := e.exporter.Export(ctx, playlistURL)
	if err != nil {
		if errors.Is(err, shared.ErrExportFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrExportFailure, err)
	}

	total := len(export.Entries)
	e.logger.Info("matching playlist entries", "url", playlistURL, "total", total)

	var matched []models.TrackRef
	for i, entry := range export.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		if ref, ok := e.matchEntry(ctx, entry); ok {
			matched = append(matched, ref)
		}

		if report != nil {
			report(float64(i+1) / float64(total))
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %d entries processed", shared.ErrNoMatches, total)
	}

	name := customName
	if name == "" {
		name = export.Name
	}
	if name == "" {
		name = fallbackPlaylistName
	}

	playlist := models.NewPlaylist(shared.GenerateID(), name)
	for _, ref := range matched {
		playlist.AddSong(ref)
	}

	if err := e.store.Create(playlist); err != nil {
		return nil, fmt.Errorf("failed to persist playlist: %w", err)
	}

	e.logger.Info("playlist imported",
		"playlist_id", playlist.ID,
		"name", name,
		"matched", len(playlist.Songs),
		"total", total,
	)

	return &ImportResult{
		PlaylistID:   playlist.ID,
		Name:         name,
		MatchedCount: len(playlist.Songs),
		TotalCount:   total,
	}, nil
}

// matchEntry searches the primary catalog for an external entry and returns
// the top hit. Misses and provider errors contribute nothing.
func (e *ImportEngine) matchEntry(ctx context.Context, entry services.ExternalEntry) (models.TrackRef, bool) {
	query := fmt.Sprintf("%s %s", entry.Name, entry.Artist)

	results, err := e.provider.Search(ctx, query)
	if err != nil {
		e.logger.Warn("entry match failed", "query", query, "error", err)
		return models.TrackRef{}, false
	}
	if len(results) == 0 {
		e.logger.Debug("no match for entry", "query", query)
		return models.TrackRef{}, false
	}

	top := results[0]
	return models.TrackRef{
		MediaID:      top.MediaID,
		Title:        top.Title,
		Uploader:     top.Uploader,
		ThumbnailURL: top.ThumbnailURL,
		Duration:     top.Duration,
	}, true
}
