// package stream relays resolved audio bytes to clients without exposing upstream URLs
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

// chunkSize bounds per-stream memory: bytes are relayed a few KiB at a time,
// so a stream's high-water mark is independent of file size.
const chunkSize = 4096

// defaultContentType is used when the upstream omits a Content-Type header.
const defaultContentType = "audio/mp4"

// TrackResolver resolves a media id into a playable source.
// Satisfied by [resolver.Resolver].
type TrackResolver interface {
	Resolve(ctx context.Context, mediaID string) (*models.ResolvedTrack, error)
}

// Upstream is an open byte stream from a resolved source, plus the headers
// the proxy relays to the client. Callers must Close it.
type Upstream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when the origin did not report a length
	Track         *models.ResolvedTrack
}

// Close releases the upstream connection.
func (u *Upstream) Close() error {
	return u.Body.Close()
}

// Copy relays the upstream body to dst in fixed-size chunks.
// Returns the byte count written and the first error encountered.
func (u *Upstream) Copy(dst io.Writer) (int64, error) {
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, u.Body, buf)
}

// Proxy opens streaming connections to resolved sources.
//
// Every Open resolves the media id from scratch: resolved URLs expire within
// minutes, so reusing a previous resolution would serve dead links. Proxy
// holds no per-stream state; concurrent streams are fully independent.
type Proxy struct {
	resolver TrackResolver
	client   *http.Client
	logger   *log.Logger
}

// NewProxy creates a streaming proxy over the given resolver.
// A nil client falls back to [http.DefaultClient].
func NewProxy(r TrackResolver, client *http.Client, logger *log.Logger) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Proxy{resolver: r, client: client, logger: logger}
}

// Open resolves the media id and starts a streaming GET against the chosen
// source. Resolution failures pass through unchanged; connection failures and
// non-success origin statuses become [shared.ErrSourceUnavailable].
func (p *Proxy) Open(ctx context.Context, mediaID string) (*Upstream, error) {
	track, err := p.resolver.Resolve(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.Chosen.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: origin status %d", shared.ErrSourceUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	p.logger.Debug("opened upstream",
		"media_id", mediaID,
		"content_type", contentType,
		"content_length", resp.ContentLength,
	)

	return &Upstream{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Track:         track,
	}, nil
}
