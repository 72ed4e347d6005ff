// Package server provides HTTP routing, middleware, and the API handlers
// for the streaming service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, folding
// the HTTP method into the registered pattern.
//
// # API Handlers
//
// [Handlers] bundles every endpoint and its collaborators behind small
// interfaces ([TrackResolver], [StreamOpener], [Importer], [Downloader],
// [PlaylistDirectory], [DownloadDirectory], [HistoryDirectory]), so tests
// can substitute fakes without touching the network or the database.
//
// The proxy endpoint relays resolved audio bytes to the client without ever
// including the upstream URL in a response. Long-running work (downloads,
// playlist imports) is submitted to a [jobs.Tracker] and returns a job id
// immediately; clients poll /api/jobs/{jobId}/progress for completion.
//
// Successful searches feed a bounded query history, which the
// recommendations endpoint samples to seed a related-tracks lookup.
//
// # Error Mapping
//
// Domain sentinel errors from the shared package map onto HTTP statuses in
// one place (statusFor): not-found sentinels become 404, invalid input 400,
// and upstream provider failures 502.
package server
