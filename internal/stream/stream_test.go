package stream

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/shared"
)

type stubResolver struct {
	track *models.ResolvedTrack
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, mediaID string) (*models.ResolvedTrack, error) {
	if s.err != nil {
		return nil, s.err
	}
	track := *s.track
	track.MediaID = mediaID
	return &track, nil
}

func resolverFor(url string) *stubResolver {
	return &stubResolver{track: &models.ResolvedTrack{
		Title:  "Test Track",
		Chosen: models.CandidateSource{URL: url, Container: "m4a", HasAudio: true},
	}}
}

func TestOpenRelaysOriginHeaders(t *testing.T) {
	payload := []byte("audio-bytes-payload")
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/webm")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer origin.Close()

	p := NewProxy(resolverFor(origin.URL), origin.Client(), nil)
	up, err := p.Open(context.Background(), "vid01")
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer up.Close()

	if up.ContentType != "audio/webm" {
		t.Errorf("ContentType = %q, want %q", up.ContentType, "audio/webm")
	}
	if up.ContentLength != int64(len(payload)) {
		t.Errorf("ContentLength = %d, want %d", up.ContentLength, len(payload))
	}

	var buf bytes.Buffer
	n, err := up.Copy(&buf)
	if err != nil {
		t.Fatalf("Copy() unexpected error: %v", err)
	}
	if n != int64(len(payload)) || !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("Copy() relayed %d bytes, want %d matching bytes", n, len(payload))
	}
}

func TestOpenDefaultsContentType(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress content sniffing so the origin genuinely omits the header.
		w.Header()["Content-Type"] = nil
		w.Write([]byte("x"))
	}))
	defer origin.Close()

	p := NewProxy(resolverFor(origin.URL), origin.Client(), nil)
	up, err := p.Open(context.Background(), "vid01")
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer up.Close()

	if up.ContentType != "audio/mp4" {
		t.Errorf("ContentType = %q, want default %q", up.ContentType, "audio/mp4")
	}
}

func TestOpenResolutionErrorPassesThrough(t *testing.T) {
	p := NewProxy(&stubResolver{err: shared.ErrNotFound}, nil, nil)

	_, err := p.Open(context.Background(), "missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("Open() error = %v, want %v", err, shared.ErrNotFound)
	}
}

func TestOpenOriginFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"origin 403", http.StatusForbidden},
		{"origin 404", http.StatusNotFound},
		{"origin 500", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer origin.Close()

			p := NewProxy(resolverFor(origin.URL), origin.Client(), nil)
			_, err := p.Open(context.Background(), "vid01")
			if !errors.Is(err, shared.ErrSourceUnavailable) {
				t.Errorf("Open() error = %v, want %v", err, shared.ErrSourceUnavailable)
			}
		})
	}
}

func TestOpenConnectionRefused(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin.Close() // nothing listening anymore

	p := NewProxy(resolverFor(origin.URL), nil, nil)
	_, err := p.Open(context.Background(), "vid01")
	if !errors.Is(err, shared.ErrSourceUnavailable) {
		t.Errorf("Open() error = %v, want %v", err, shared.ErrSourceUnavailable)
	}
}

func TestCopyLargeBody(t *testing.T) {
	payload := make([]byte, 64*1024+123)
	rand.Read(payload)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer origin.Close()

	p := NewProxy(resolverFor(origin.URL), origin.Client(), nil)
	up, err := p.Open(context.Background(), "vid01")
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer up.Close()

	var buf bytes.Buffer
	if _, err := up.Copy(&buf); err != nil {
		t.Fatalf("Copy() unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("Copy() corrupted payload: got %d bytes, want %d", buf.Len(), len(payload))
	}
}
