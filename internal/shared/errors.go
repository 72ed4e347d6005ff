package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Resolution and streaming errors
	ErrNotFound          = fmt.Errorf("no playable source found")
	ErrUpstream          = fmt.Errorf("metadata provider request failed")
	ErrSourceUnavailable = fmt.Errorf("audio source unavailable")

	// Playlist import errors
	ErrInvalidSource = fmt.Errorf("invalid external playlist URL")
	ErrExportFailure = fmt.Errorf("playlist export tool failed")
	ErrNoMatches     = fmt.Errorf("no songs matched")

	// Job errors
	ErrJobNotFound = fmt.Errorf("job not found")

	// Storage errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrDownloadNotFound = fmt.Errorf("download not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
