// package models defines the data model for the audio streaming service
package models

import (
	"fmt"
	"time"
)

// CandidateSource is one playable audio rendition reported by the metadata
// provider. The URL is ephemeral: it typically expires minutes after issuance
// and must never be persisted or returned to clients.
type CandidateSource struct {
	URL         string
	Codec       string
	Container   string
	BitrateKbps float64
	HasAudio    bool
}

// ResolvedTrack is the outcome of resolving a media id: display metadata,
// the chosen candidate source, and a stable proxy handle.
//
// ProxyHandle is derived only from MediaID, so it survives expiry of the
// chosen source's URL; clients follow the handle and resolution is repeated.
type ResolvedTrack struct {
	MediaID      string          `json:"id"`
	Title        string          `json:"title"`
	Uploader     string          `json:"uploader"`
	Duration     int             `json:"duration"`
	ThumbnailURL string          `json:"thumbnail"`
	Chosen       CandidateSource `json:"-"`
	ProxyHandle  string          `json:"proxied_url"`
}

// TrackRef is a denormalized snapshot of a track stored inside a playlist.
// Catalog changes do not retroactively alter playlist contents.
type TrackRef struct {
	MediaID      string `json:"id"`
	Title        string `json:"title"`
	Uploader     string `json:"uploader"`
	ThumbnailURL string `json:"thumbnail"`
	Duration     int    `json:"duration"`
}

// Playlist is an ordered collection of track snapshots.
//
// Songs never contains two entries with the same MediaID.
type Playlist struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Songs     []TrackRef `json:"songs"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewPlaylist creates an empty playlist with the given id and name.
func NewPlaylist(id, name string) *Playlist {
	return &Playlist{
		ID:        id,
		Name:      name,
		Songs:     []TrackRef{},
		CreatedAt: time.Now(),
	}
}

// AddSong appends a track snapshot, suppressing duplicates by MediaID.
// Returns true if the song was added.
func (p *Playlist) AddSong(song TrackRef) bool {
	for _, s := range p.Songs {
		if s.MediaID == song.MediaID {
			return false
		}
	}
	p.Songs = append(p.Songs, song)
	return true
}

// Validate checks playlist invariants before persistence.
func (p *Playlist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("playlist name is required")
	}
	seen := make(map[string]bool, len(p.Songs))
	for _, s := range p.Songs {
		if s.MediaID == "" {
			return fmt.Errorf("song media id is required")
		}
		if seen[s.MediaID] {
			return fmt.Errorf("duplicate song %s in playlist", s.MediaID)
		}
		seen[s.MediaID] = true
	}
	return nil
}

// DownloadRecord describes a completed single-track download.
type DownloadRecord struct {
	MediaID   string    `json:"id"`
	Title     string    `json:"title"`
	Uploader  string    `json:"uploader"`
	Thumbnail string    `json:"thumbnail"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks record fields before persistence.
func (d *DownloadRecord) Validate() error {
	if d.MediaID == "" {
		return fmt.Errorf("media id is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}
