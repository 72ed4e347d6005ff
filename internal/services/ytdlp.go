package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

const defaultYTDLBinary = "yt-dlp"

// relatedLimit bounds how many mix-playlist entries are fetched for related
// lookups. The first entry is the seed track itself.
const relatedLimit = 11

// YTDLProvider implements [MetadataProvider] using the yt-dlp command line tool.
type YTDLProvider struct {
	binary  string
	timeout time.Duration
	logger  *log.Logger
}

// NewYTDLProvider creates a provider invoking the given yt-dlp binary.
// An empty binary falls back to "yt-dlp" on PATH; a zero timeout disables
// the per-call deadline.
func NewYTDLProvider(binary string, timeout time.Duration, logger *log.Logger) *YTDLProvider {
	if binary == "" {
		binary = defaultYTDLBinary
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YTDLProvider{binary: binary, timeout: timeout, logger: logger}
}

// ytEntry mirrors the subset of yt-dlp's JSON output used for listings.
type ytEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type ytListing struct {
	Entries []ytEntry `json:"entries"`
}

type ytFormat struct {
	URL    string   `json:"url"`
	Ext    string   `json:"ext"`
	ACodec string   `json:"acodec"`
	ABR    *float64 `json:"abr"`
}

type ytInfo struct {
	ytEntry
	Formats []ytFormat `json:"formats"`
}

// Search queries the catalog with a free-text query and returns the top result.
func (p *YTDLProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	out, err := p.run(ctx, "-J", "--no-warnings", fmt.Sprintf("ytsearch1:%s", query))
	if err != nil {
		return nil, err
	}

	var listing ytListing
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed search output: %v", shared.ErrUpstream, err)
	}

	results := make([]SearchResult, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		results = append(results, entry.toSearchResult())
	}
	return results, nil
}

// Related returns entries from the catalog's mix playlist for the given id,
// excluding the seed track and duplicate titles.
func (p *YTDLProvider) Related(ctx context.Context, mediaID string) ([]SearchResult, error) {
	mixURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s&list=RD%s", mediaID, mediaID)
	out, err := p.run(ctx,
		"-J", "--no-warnings", "--flat-playlist",
		"--playlist-items", fmt.Sprintf("1-%d", relatedLimit),
		mixURL,
	)
	if err != nil {
		return nil, err
	}

	var listing ytListing
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed related output: %v", shared.ErrUpstream, err)
	}

	seen := make(map[string]bool)
	var related []SearchResult
	for i, entry := range listing.Entries {
		if i == 0 || entry.ID == mediaID {
			continue
		}
		title := strings.ToLower(entry.Title)
		if seen[title] {
			continue
		}
		seen[title] = true
		related = append(related, entry.toSearchResult())
	}
	return related, nil
}

// ResolveFormats returns display metadata and every candidate source for a
// media id. Candidates with no audio codec are reported with HasAudio false.
func (p *YTDLProvider) ResolveFormats(ctx context.Context, mediaID string) (*TrackMetadata, []models.CandidateSource, error) {
	out, err := p.run(ctx, "-J", "--no-warnings", "https://www.youtube.com/watch?v="+mediaID)
	if err != nil {
		return nil, nil, err
	}

	var info ytInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed format output: %v", shared.ErrUpstream, err)
	}

	meta := &TrackMetadata{
		MediaID:      info.ID,
		Title:        info.Title,
		Uploader:     info.Uploader,
		ThumbnailURL: info.thumbnailURL(),
		Duration:     int(info.Duration),
	}
	if meta.MediaID == "" {
		meta.MediaID = mediaID
	}

	sources := make([]models.CandidateSource, 0, len(info.Formats))
	for _, f := range info.Formats {
		var bitrate float64
		if f.ABR != nil {
			bitrate = *f.ABR
		}
		sources = append(sources, models.CandidateSource{
			URL:         f.URL,
			Codec:       f.ACodec,
			Container:   f.Ext,
			BitrateKbps: bitrate,
			HasAudio:    f.ACodec != "" && f.ACodec != "none",
		})
	}

	return meta, sources, nil
}

// run executes the yt-dlp binary and returns its stdout.
func (p *YTDLProvider) run(ctx context.Context, args ...string) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("invoking provider", "binary", p.binary, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrUpstream, detail)
	}

	return stdout.Bytes(), nil
}

func (e ytEntry) toSearchResult() SearchResult {
	return SearchResult{
		MediaID:      e.ID,
		Title:        e.Title,
		Uploader:     e.Uploader,
		ThumbnailURL: e.thumbnailURL(),
		Duration:     int(e.Duration),
	}
}

func (e ytEntry) thumbnailURL() string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	if len(e.Thumbnails) > 0 {
		return e.Thumbnails[len(e.Thumbnails)-1].URL
	}
	return ""
}
