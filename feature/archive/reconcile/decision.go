package reconcile

import (
	"fmt"

	"odyssey-archiver/feature/archive/models"
)

// DecisionKind represents the write action required for one observation.
type DecisionKind string

const (
	// DecisionCreate inserts the entity row and its first version.
	DecisionCreate DecisionKind = "create_entity"
	// DecisionAppendVersion appends a new latest version for an existing entity.
	DecisionAppendVersion DecisionKind = "append_version"
	// DecisionMarkDeleted flips the deletion flag; version history untouched.
	DecisionMarkDeleted DecisionKind = "mark_deleted"
	// DecisionNoOp refreshes metadata and the last-seen timestamp only.
	DecisionNoOp DecisionKind = "touch_last_seen"
)

// StoredComment is the previously persisted state for one natural key, as
// loaded by the store for the differ.
type StoredComment struct {
	Comment models.Comment

	// LatestBody is the body text of the current latest version. Nil when no
	// version row could be resolved (a partial earlier run); the differ
	// repairs that by appending.
	LatestBody *string
}

// Decision is the differ's output for one observation.
type Decision struct {
	Kind DecisionKind

	// Reason explains why this action is needed.
	Reason string
}

// Decide compares one fresh observation against the stored state and returns
// exactly one required action.
//
// Deletion detection takes priority over content comparison: a deleted node
// never gets a version for its sentinel body. The deletion flag is sticky:
// once an entity is deleted, later observations never append versions, so
// the last real body stays the latest. Body comparison is byte-exact with no
// normalization. Score and permalink changes never influence the decision;
// the writer refreshes that metadata on every apply.
func Decide(obs models.Observation, stored *StoredComment) Decision {
	if stored == nil {
		// First sight. Even an already-deleted comment gets a first version,
		// so its history starts with whatever body the source still reports.
		return Decision{Kind: DecisionCreate, Reason: "first observation"}
	}

	if obs.Deleted && !stored.Comment.IsDeleted {
		return Decision{Kind: DecisionMarkDeleted, Reason: "source reports deletion"}
	}

	if obs.Deleted || stored.Comment.IsDeleted {
		// Already recorded as deleted; never version the sentinel text.
		return Decision{Kind: DecisionNoOp, Reason: "deleted, history frozen"}
	}

	if stored.LatestBody == nil {
		return Decision{Kind: DecisionAppendVersion, Reason: "no resolvable latest version"}
	}

	if *stored.LatestBody != obs.Body {
		return Decision{Kind: DecisionAppendVersion, Reason: "body changed"}
	}

	return Decision{Kind: DecisionNoOp, Reason: "unchanged"}
}

// Summary provides aggregate counts for one reconciliation pass.
type Summary struct {
	// Created counts entities seen for the first time.
	Created int
	// VersionsAppended counts content edits recorded as new versions.
	VersionsAppended int
	// Deleted counts newly flagged deletions.
	Deleted int
	// Untouched counts observations that only refreshed metadata.
	Untouched int
	// Processed counts every applied write, regardless of kind.
	Processed int
}

// Record tallies one applied decision.
func (s *Summary) Record(kind DecisionKind) {
	switch kind {
	case DecisionCreate:
		s.Created++
	case DecisionAppendVersion:
		s.VersionsAppended++
	case DecisionMarkDeleted:
		s.Deleted++
	case DecisionNoOp:
		s.Untouched++
	}
	s.Processed++
}

// String renders the summary for run-end logging.
func (s Summary) String() string {
	return fmt.Sprintf("processed=%d created=%d versions=%d deleted=%d untouched=%d",
		s.Processed, s.Created, s.VersionsAppended, s.Deleted, s.Untouched)
}
