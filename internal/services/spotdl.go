package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/shared"
)

const defaultSpotdlBinary = "spotdl"

// SpotdlExporter implements [PlaylistExporter] by invoking spotdl's save
// subcommand, which writes the playlist's song list as JSON without
// downloading any audio.
//
// Each export owns a scoped temporary directory that is removed on every
// exit path.
type SpotdlExporter struct {
	binary  string
	timeout time.Duration
	logger  *log.Logger
}

// NewSpotdlExporter creates an exporter invoking the given spotdl binary.
func NewSpotdlExporter(binary string, timeout time.Duration, logger *log.Logger) *SpotdlExporter {
	if binary == "" {
		binary = defaultSpotdlBinary
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotdlExporter{binary: binary, timeout: timeout, logger: logger}
}

// spotdlEntry mirrors the subset of spotdl's save-file schema used here.
type spotdlEntry struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	ListName string `json:"list_name"`
}

// Export runs spotdl save and parses the resulting song list.
func (s *SpotdlExporter) Export(ctx context.Context, playlistURL string) (*ExternalPlaylist, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "playlist_import_")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create workspace: %v", shared.ErrExportFailure, err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			s.logger.Warn("failed to clean up export workspace", "dir", tmpDir, "error", err)
		}
	}()

	saveFile := filepath.Join(tmpDir, "playlist.spotdl")

	cmd := exec.CommandContext(ctx, s.binary, "save", playlistURL, "--save-file", saveFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.logger.Info("exporting external playlist", "url", playlistURL)

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrExportFailure, detail)
	}

	data, err := os.ReadFile(saveFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no save file produced: %v", shared.ErrExportFailure, err)
	}

	return parseSaveFile(data)
}

// parseSaveFile decodes a spotdl save file. Older spotdl versions emit a bare
// object instead of a list, so the content is bracket-wrapped when needed.
func parseSaveFile(data []byte) (*ExternalPlaylist, error) {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("%w: empty save file", shared.ErrExportFailure)
	}
	if !strings.HasPrefix(content, "[") {
		content = "[" + content + "]"
	}

	var entries []spotdlEntry
	if err := json.Unmarshal([]byte(content), &entries); err != nil {
		return nil, fmt.Errorf("%w: unparseable save file: %v", shared.ErrExportFailure, err)
	}

	playlist := &ExternalPlaylist{Entries: make([]ExternalEntry, 0, len(entries))}
	for _, entry := range entries {
		if playlist.Name == "" && entry.ListName != "" {
			playlist.Name = entry.ListName
		}
		playlist.Entries = append(playlist.Entries, ExternalEntry{
			Name:   entry.Name,
			Artist: entry.Artist,
		})
	}

	return playlist, nil
}
