// Package store is the persistent-store collaborator: it applies differ
// decisions to the Postgres archive and records run outcomes.
//
// The archive is append-only. Comment rows are created once and then only
// have their metadata refreshed; version rows are inserted and never mutated
// beyond the is_latest demotion; run-log rows are inserted once per pass.
// Nothing is ever deleted.
//
// # Invariants
//
// Every multi-row mutation runs in one transaction, so at no observable time
// does a comment have two latest versions or a pointer to a missing version.
// The append path re-reads the latest body inside the transaction, which
// makes re-applying the same decision a no-op instead of a duplicate. States
// that violate the invariants surface as ErrIntegrity and abort the run.
package store
