// Package reddit implements the remote data-source collaborator: a thin
// client for the Reddit OAuth JSON API.
//
// It exposes exactly the two operations the run coordinator needs:
//
//  1. ListThreads: enumerate every submission of the configured subreddit
//     (the root collections), unioning the new, hot, and top(all) listings
//     and resolving pagination cursors.
//
//  2. FetchThread: materialize a submission's full comment tree as a flat,
//     duplicate-free sequence of observations, resolving "more" continuation
//     stubs through the morechildren endpoint before emitting.
//
// Authentication uses the client_credentials grant with a cached token.
// Rate limiting is not handled here beyond surfacing non-200 responses as
// errors; the run coordinator's single whole-pass retry is the recovery
// policy.
//
// The deletion sentinel convention ("[deleted]"/"[removed]" bodies, absent
// authors) is interpreted here and only here; the rest of the engine reads
// Observation.Deleted.
package reddit
