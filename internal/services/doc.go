// Package services defines capability interfaces for external collaborators and implements them over subprocess tools.
//
// # Provider Interface
//
// [MetadataProvider] abstracts the primary catalog: free-text search, related-track listing,
// and per-track format enumeration. [PlaylistExporter] abstracts an external playlist service
// as a one-shot export of entry names and artists.
//
// # yt-dlp Implementation
//
// [YTDLProvider] shells out to yt-dlp with JSON output (-J) and decodes only the fields the
// service needs. Catalog search uses the ytsearch pseudo-URL scheme; related tracks come from
// the mix playlist seeded by the given track, with the seed itself and duplicate titles removed.
//
// Format enumeration surfaces every candidate with its container, codec, and average bitrate,
// leaving source selection to the resolver package.
//
// # spotdl Implementation
//
// [SpotdlExporter] runs spotdl's save operation into a temporary directory and parses the
// resulting save file. The file is usually a JSON array but some versions emit a bare object,
// so the parser wraps non-array content in brackets before decoding. The temporary directory
// is removed whether or not the export succeeds.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrUpstream] : the provider subprocess failed or emitted undecodable output
//   - [shared.ErrExportFailure] : the exporter subprocess failed or its save file was unreadable
//
// Both wrap the subprocess stderr so callers can log the underlying cause.
package services
