package services

import (
	"context"

	"github.com/nnaudify/audify/internal/models"
)

// MetadataProvider is the external catalog capability: free-text search,
// related-item lookup, and candidate audio source resolution.
//
// Implementations are treated as unreliable and latency-bearing; every
// failure is surfaced wrapped in [shared.ErrUpstream] so callers never see a
// provider-native error type.
type MetadataProvider interface {
	// Search returns catalog entries matching a free-text query, best first.
	Search(ctx context.Context, query string) ([]SearchResult, error)

	// Related returns entries related to the given media id.
	Related(ctx context.Context, mediaID string) ([]SearchResult, error)

	// ResolveFormats returns display metadata and the full candidate source
	// list for a media id. Candidate URLs are ephemeral.
	ResolveFormats(ctx context.Context, mediaID string) (*TrackMetadata, []models.CandidateSource, error)
}

// PlaylistExporter obtains the song list of an external catalog's playlist,
// typically by invoking an external tool.
type PlaylistExporter interface {
	// Export fetches the ordered entry list for a playlist URL.
	// Tool failure or unparseable output is reported as [shared.ErrExportFailure].
	Export(ctx context.Context, playlistURL string) (*ExternalPlaylist, error)
}

// SearchResult is one catalog entry returned by search or related lookups.
type SearchResult struct {
	MediaID      string `json:"id"`
	Title        string `json:"title"`
	Uploader     string `json:"uploader"`
	ThumbnailURL string `json:"thumbnail"`
	Duration     int    `json:"duration"`
}

// TrackMetadata is the display metadata attached to a resolved media id.
type TrackMetadata struct {
	MediaID      string
	Title        string
	Uploader     string
	ThumbnailURL string
	Duration     int
}

// ExternalPlaylist is the transient result of exporting an external playlist.
type ExternalPlaylist struct {
	Name    string // Playlist name as reported by the exporter, may be empty
	Entries []ExternalEntry
}

// ExternalEntry is one song as reported by the external exporter.
type ExternalEntry struct {
	Name   string
	Artist string
}
