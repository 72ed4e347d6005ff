// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/services"
)

// MockProvider is a configurable test double for [services.MetadataProvider].
// Unset function fields return empty results.
type MockProvider struct {
	SearchFunc         func(ctx context.Context, query string) ([]services.SearchResult, error)
	RelatedFunc        func(ctx context.Context, mediaID string) ([]services.SearchResult, error)
	ResolveFormatsFunc func(ctx context.Context, mediaID string) (*services.TrackMetadata, []models.CandidateSource, error)

	SearchCalls []string
}

func (m *MockProvider) Search(ctx context.Context, query string) ([]services.SearchResult, error) {
	m.SearchCalls = append(m.SearchCalls, query)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return []services.SearchResult{}, nil
}

func (m *MockProvider) Related(ctx context.Context, mediaID string) ([]services.SearchResult, error) {
	if m.RelatedFunc != nil {
		return m.RelatedFunc(ctx, mediaID)
	}
	return []services.SearchResult{}, nil
}

func (m *MockProvider) ResolveFormats(ctx context.Context, mediaID string) (*services.TrackMetadata, []models.CandidateSource, error) {
	if m.ResolveFormatsFunc != nil {
		return m.ResolveFormatsFunc(ctx, mediaID)
	}
	return &services.TrackMetadata{MediaID: mediaID}, nil, nil
}

// MockExporter is a configurable test double for [services.PlaylistExporter].
type MockExporter struct {
	ExportFunc  func(ctx context.Context, playlistURL string) (*services.ExternalPlaylist, error)
	ExportCalls []string
}

func (m *MockExporter) Export(ctx context.Context, playlistURL string) (*services.ExternalPlaylist, error) {
	m.ExportCalls = append(m.ExportCalls, playlistURL)
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, playlistURL)
	}
	return &services.ExternalPlaylist{}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
