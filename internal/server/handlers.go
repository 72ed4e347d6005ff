package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/jobs"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/services"
	"github.com/nnaudify/audify/internal/shared"
	"github.com/nnaudify/audify/internal/stream"
	"github.com/nnaudify/audify/internal/tasks"
)

// TrackResolver resolves a media id into playable track metadata.
// Satisfied by [resolver.Resolver].
type TrackResolver interface {
	Resolve(ctx context.Context, mediaID string) (*models.ResolvedTrack, error)
}

// StreamOpener opens a relayed byte stream for a media id.
// Satisfied by [stream.Proxy].
type StreamOpener interface {
	Open(ctx context.Context, mediaID string) (*stream.Upstream, error)
}

// Importer runs a playlist import end to end. Satisfied by [tasks.ImportEngine].
type Importer interface {
	Import(ctx context.Context, playlistURL, customName string, report func(float64)) (*tasks.ImportResult, error)
}

// Downloader fetches a track to local storage. Satisfied by [tasks.DownloadEngine].
type Downloader interface {
	Download(ctx context.Context, mediaID string, report func(float64)) (*models.DownloadRecord, error)
}

// PlaylistDirectory is the persistence surface the playlist handlers need.
// Satisfied by [repositories.PlaylistRepository].
type PlaylistDirectory interface {
	Create(playlist *models.Playlist) error
	Get(id string) (*models.Playlist, error)
	List() ([]*models.Playlist, error)
	Delete(id string) error
	AddSong(playlistID string, song models.TrackRef) (bool, error)
	RemoveSong(playlistID, mediaID string) error
}

// DownloadDirectory is the persistence surface the download handlers need.
// Satisfied by [repositories.DownloadRepository].
type DownloadDirectory interface {
	Get(mediaID string) (*models.DownloadRecord, error)
	List() ([]*models.DownloadRecord, error)
}

// HistoryDirectory stores recent search queries for the recommendations
// endpoint. Satisfied by [repositories.HistoryRepository].
type HistoryDirectory interface {
	Record(query string) error
	Recent(limit int) ([]string, error)
}

// Handlers bundles the API endpoints and their collaborators.
type Handlers struct {
	provider     services.MetadataProvider
	resolver     TrackResolver
	proxy        StreamOpener
	tracker      *jobs.Tracker
	importer     Importer
	downloader   Downloader
	playlists    PlaylistDirectory
	downloads    DownloadDirectory
	history      HistoryDirectory
	downloadsDir string
	logger       *log.Logger

	pickSeed func(n int) int // index choice for recommendation seeds
}

// NewHandlers creates the API handler set. downloadsDir is the directory
// served by the local-file endpoint.
func NewHandlers(
	provider services.MetadataProvider,
	resolver TrackResolver,
	proxy StreamOpener,
	tracker *jobs.Tracker,
	importer Importer,
	downloader Downloader,
	playlists PlaylistDirectory,
	downloads DownloadDirectory,
	history HistoryDirectory,
	downloadsDir string,
	logger *log.Logger,
) *Handlers {
	return &Handlers{
		provider:     provider,
		resolver:     resolver,
		proxy:        proxy,
		tracker:      tracker,
		importer:     importer,
		downloader:   downloader,
		playlists:    playlists,
		downloads:    downloads,
		history:      history,
		downloadsDir: downloadsDir,
		logger:       logger,
		pickSeed:     rand.IntN,
	}
}

// Register wires every API route onto the router.
func (h *Handlers) Register(r Router) {
	r.Handle(http.MethodGet, "/api/search", http.HandlerFunc(h.Search))
	r.Handle(http.MethodGet, "/api/related/{mediaId}", http.HandlerFunc(h.Related))
	r.Handle(http.MethodGet, "/api/recommendations", http.HandlerFunc(h.Recommendations))
	r.Handle(http.MethodGet, "/api/stream/{mediaId}", http.HandlerFunc(h.StreamInfo))
	r.Handle(http.MethodGet, "/api/proxy/{mediaId}", http.HandlerFunc(h.ProxyStream))
	r.Handle(http.MethodPost, "/api/download/{mediaId}", http.HandlerFunc(h.SubmitDownload))
	r.Handle(http.MethodGet, "/api/jobs/{jobId}/progress", http.HandlerFunc(h.JobProgress))
	r.Handle(http.MethodPost, "/api/playlists/import", http.HandlerFunc(h.SubmitImport))
	r.Handle(http.MethodGet, "/api/playlists", http.HandlerFunc(h.ListPlaylists))
	r.Handle(http.MethodPost, "/api/playlists", http.HandlerFunc(h.CreatePlaylist))
	r.Handle(http.MethodGet, "/api/playlists/{id}", http.HandlerFunc(h.GetPlaylist))
	r.Handle(http.MethodDelete, "/api/playlists/{id}", http.HandlerFunc(h.DeletePlaylist))
	r.Handle(http.MethodPost, "/api/playlists/{id}/songs", http.HandlerFunc(h.AddPlaylistSong))
	r.Handle(http.MethodDelete, "/api/playlists/{id}/songs", http.HandlerFunc(h.RemovePlaylistSong))
	r.Handle(http.MethodGet, "/api/downloads", http.HandlerFunc(h.ListDownloads))
	r.Handle(http.MethodGet, "/api/local/{filename}", http.HandlerFunc(h.LocalFile))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrJobNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrDownloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidSource),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUpstream),
		errors.Is(err, shared.ErrSourceUnavailable),
		errors.Is(err, shared.ErrExportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Search handles GET /api/search?q= and returns catalog search results.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: q", shared.ErrMissingArgument))
		return
	}

	results, err := h.provider.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	// Best effort; a history failure never fails the search.
	if err := h.history.Record(query); err != nil {
		h.logger.Warn("failed to record search query", "error", err)
	}

	h.writeJSON(w, http.StatusOK, results)
}

// Recommendations handles GET /api/recommendations. It seeds a related-tracks
// lookup from one of the user's recent searches or downloaded titles, picked
// at random. With no history and no downloads there is nothing to go on, so
// the response is an empty list.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	queries, err := h.history.Recent(20)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	records, err := h.downloads.List()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	seeds := append([]string{}, queries...)
	for _, record := range records {
		seeds = append(seeds, record.Title)
	}
	if len(seeds) == 0 {
		h.writeJSON(w, http.StatusOK, []services.SearchResult{})
		return
	}

	seed := seeds[h.pickSeed(len(seeds))]
	hits, err := h.provider.Search(r.Context(), seed)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	if len(hits) == 0 {
		h.writeJSON(w, http.StatusOK, []services.SearchResult{})
		return
	}

	related, err := h.provider.Related(r.Context(), hits[0].MediaID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, related)
}

// Related handles GET /api/related/{mediaId} and returns tracks related to
// the given one.
func (h *Handlers) Related(w http.ResponseWriter, r *http.Request) {
	mediaID := r.PathValue("mediaId")

	results, err := h.provider.Related(r.Context(), mediaID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}

// StreamInfo handles GET /api/stream/{mediaId}. The response carries track
// metadata and the proxy handle; the resolved source URL never leaves the
// process.
func (h *Handlers) StreamInfo(w http.ResponseWriter, r *http.Request) {
	track, err := h.resolver.Resolve(r.Context(), r.PathValue("mediaId"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, track)
}

// ProxyStream handles GET /api/proxy/{mediaId}, relaying audio bytes from
// the resolved source. Failures before the first byte produce an error
// response; a mid-stream failure aborts the connection, since the status
// line is already on the wire.
func (h *Handlers) ProxyStream(w http.ResponseWriter, r *http.Request) {
	up, err := h.proxy.Open(r.Context(), r.PathValue("mediaId"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	defer up.Close()

	w.Header().Set("Content-Type", up.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	if up.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(up.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := up.Copy(w); err != nil {
		h.logger.Warn("stream interrupted", "media_id", up.Track.MediaID, "error", err)
		panic(http.ErrAbortHandler)
	}
}

// SubmitDownload handles POST /api/download/{mediaId}, queueing an async
// download job.
func (h *Handlers) SubmitDownload(w http.ResponseWriter, r *http.Request) {
	mediaID := r.PathValue("mediaId")

	jobID := h.tracker.Submit(jobs.Download, func(ctx context.Context, handle *jobs.Handle) (any, error) {
		return h.downloader.Download(ctx, mediaID, handle.SetProgress)
	})

	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// progressResponse is the poll payload for GET /api/jobs/{jobId}/progress.
type progressResponse struct {
	JobID    string  `json:"job_id"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
	Result   any     `json:"result,omitempty"`
}

// JobProgress handles GET /api/jobs/{jobId}/progress. Unknown and reaped
// jobs both return 404.
func (h *Handlers) JobProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.tracker.Poll(r.PathValue("jobId"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, progressResponse{
		JobID:    snap.ID,
		State:    snap.State.String(),
		Progress: snap.Progress,
		Error:    snap.Err,
		Result:   snap.Result,
	})
}

// importRequest is the body for POST /api/playlists/import.
type importRequest struct {
	SpotifyURL string `json:"spotify_url"`
	Name       string `json:"name"`
}

// SubmitImport handles POST /api/playlists/import. The URL is validated
// synchronously so malformed input fails with 400 before a job is queued.
func (h *Handlers) SubmitImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.SpotifyURL) == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: spotify_url", shared.ErrMissingArgument))
		return
	}
	if err := tasks.ValidatePlaylistURL(req.SpotifyURL); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	jobID := h.tracker.Submit(jobs.PlaylistImport, func(ctx context.Context, handle *jobs.Handle) (any, error) {
		return h.importer.Import(ctx, req.SpotifyURL, req.Name, handle.SetProgress)
	})

	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// ListPlaylists handles GET /api/playlists.
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.List()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, playlists)
}

// createPlaylistRequest is the body for POST /api/playlists.
type createPlaylistRequest struct {
	Name string `json:"name"`
}

// CreatePlaylist handles POST /api/playlists, creating an empty playlist.
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: name", shared.ErrMissingArgument))
		return
	}

	playlist := models.NewPlaylist(shared.GenerateID(), req.Name)
	if err := h.playlists.Create(playlist); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusCreated, playlist)
}

// GetPlaylist handles GET /api/playlists/{id}.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, playlist)
}

// DeletePlaylist handles DELETE /api/playlists/{id}.
func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.playlists.Delete(r.PathValue("id")); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddPlaylistSong handles POST /api/playlists/{id}/songs. Adding a song that
// is already present is a no-op and reports added=false.
func (h *Handlers) AddPlaylistSong(w http.ResponseWriter, r *http.Request) {
	var song models.TrackRef
	if err := json.NewDecoder(r.Body).Decode(&song); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if song.MediaID == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: id", shared.ErrMissingArgument))
		return
	}

	added, err := h.playlists.AddSong(r.PathValue("id"), song)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

// RemovePlaylistSong handles DELETE /api/playlists/{id}/songs?song_id=.
func (h *Handlers) RemovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	songID := r.URL.Query().Get("song_id")
	if songID == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: song_id", shared.ErrMissingArgument))
		return
	}

	if err := h.playlists.RemoveSong(r.PathValue("id"), songID); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListDownloads handles GET /api/downloads.
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	records, err := h.downloads.List()
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// LocalFile handles GET /api/local/{filename}, serving a completed download
// from local storage. The filename is reduced to its base so path traversal
// cannot escape the downloads directory.
func (h *Handlers) LocalFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if name == "." || name == string(filepath.Separator) {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: filename", shared.ErrInvalidInput))
		return
	}

	http.ServeFile(w, r, filepath.Join(h.downloadsDir, name))
}
