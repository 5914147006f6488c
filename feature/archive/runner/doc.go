// Package runner coordinates one reconciliation pass.
//
// A run moves through the states not_started → listing_roots → processing →
// finalizing → done, with failed reachable from any non-terminal state. The
// coordinator lists every thread in the subreddit (full coverage, never a
// subset), pulls each comment tree through the fetcher, routes every
// observation through the differ and the store writer, and finishes by
// persisting exactly one run record.
//
// # Failure policy
//
// A fetch failure retries the entire pass once; a second consecutive fetch
// failure aborts. A write failure aborts without retry. An integrity
// violation is always fatal. Aborts persist a failure run record with the
// cause and leave already-committed entities committed; there is no global
// rollback across threads. The caller signals non-zero process exit from the
// returned error.
package runner
