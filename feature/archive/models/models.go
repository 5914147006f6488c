package models

import (
	"encoding/json"
	"time"
)

// Run kinds recorded verbatim in the run log.
const (
	RunTypeInitial   = "initial"
	RunTypeScheduled = "scheduled"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Observation is one comment as seen by the source during a single sweep.
// It is the unit of work flowing from the fetcher into the differ.
type Observation struct {
	// CommentID is the natural key, stable across the whole dataset.
	CommentID string

	// ThreadID is the submission this comment belongs to.
	ThreadID string

	// ParentCommentID is nil for top-level comments (their parent is the
	// submission itself, not another comment).
	ParentCommentID *string

	// AuthorUsername is nil when the source anonymized or removed the author.
	AuthorUsername *string

	// CreatedUTC is the source-reported creation time.
	CreatedUTC time.Time

	// Body is the comment text exactly as received. No normalization.
	Body string

	// EditedUTC is the source-reported edit time, nil when never edited.
	EditedUTC *time.Time

	Score     *int
	Permalink *string

	// Deleted is set by the source client when the payload carries the
	// deletion sentinel (removed body or absent author).
	Deleted bool

	// Raw is the comment's JSON object verbatim as received.
	Raw json.RawMessage
}
