package reconcile

import (
	"testing"

	"odyssey-archiver/feature/archive/models"

	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func stored(latestBody string, deleted bool) *StoredComment {
	return &StoredComment{
		Comment:    models.Comment{CommentID: "c1", IsDeleted: deleted},
		LatestBody: strptr(latestBody),
	}
}

func TestDecide_FirstObservationCreates(t *testing.T) {
	obs := models.Observation{CommentID: "c1", Body: "hello"}

	d := Decide(obs, nil)

	assert.Equal(t, DecisionCreate, d.Kind)
}

func TestDecide_DeletedFirstObservationStillCreates(t *testing.T) {
	// A comment already deleted at first sight still gets an entity and a
	// first version, so history starts with whatever body remains.
	obs := models.Observation{CommentID: "c1", Body: "[removed]", Deleted: true}

	d := Decide(obs, nil)

	assert.Equal(t, DecisionCreate, d.Kind)
}

func TestDecide_BodyChangeAppends(t *testing.T) {
	obs := models.Observation{CommentID: "c1", Body: "hello world"}

	d := Decide(obs, stored("hello", false))

	assert.Equal(t, DecisionAppendVersion, d.Kind)
}

func TestDecide_ByteExactComparison(t *testing.T) {
	// No normalization: trailing whitespace is a content change.
	obs := models.Observation{CommentID: "c1", Body: "hello "}

	d := Decide(obs, stored("hello", false))

	assert.Equal(t, DecisionAppendVersion, d.Kind)
}

func TestDecide_UnchangedBodyTouchesOnly(t *testing.T) {
	obs := models.Observation{CommentID: "c1", Body: "hello"}

	d := Decide(obs, stored("hello", false))

	assert.Equal(t, DecisionNoOp, d.Kind)
}

func TestDecide_ScoreChangeNeverAppends(t *testing.T) {
	score := 42
	obs := models.Observation{CommentID: "c1", Body: "hello", Score: &score}

	d := Decide(obs, stored("hello", false))

	assert.Equal(t, DecisionNoOp, d.Kind)
}

func TestDecide_DeletionMarks(t *testing.T) {
	obs := models.Observation{CommentID: "c1", Body: "[deleted]", Deleted: true}

	d := Decide(obs, stored("hello", false))

	assert.Equal(t, DecisionMarkDeleted, d.Kind)
}

func TestDecide_DeletionWinsOverBodyChange(t *testing.T) {
	// Tie-break: sentinel present AND body differs from stored latest must
	// mark deletion, never append the sentinel text as a version.
	obs := models.Observation{CommentID: "c1", Body: "[removed]", Deleted: true}

	d := Decide(obs, stored("original text", false))

	assert.Equal(t, DecisionMarkDeleted, d.Kind)
}

func TestDecide_AlreadyDeletedIsNoOp(t *testing.T) {
	obs := models.Observation{CommentID: "c1", Body: "[deleted]", Deleted: true}

	d := Decide(obs, stored("hello", true))

	assert.Equal(t, DecisionNoOp, d.Kind)
}

func TestDecide_DeletionFlagIsSticky(t *testing.T) {
	// Once stored as deleted, new body text never reopens version history.
	obs := models.Observation{CommentID: "c1", Body: "i am back"}

	d := Decide(obs, stored("hello", true))

	assert.Equal(t, DecisionNoOp, d.Kind)
}

func TestDecide_MissingLatestVersionRepairs(t *testing.T) {
	// A partial earlier run can leave an entity without a resolvable latest
	// version; the differ repairs it by appending.
	s := &StoredComment{Comment: models.Comment{CommentID: "c1"}}
	obs := models.Observation{CommentID: "c1", Body: "hello"}

	d := Decide(obs, s)

	assert.Equal(t, DecisionAppendVersion, d.Kind)
}

func TestSummary_RecordCountsEveryKind(t *testing.T) {
	var s Summary
	s.Record(DecisionCreate)
	s.Record(DecisionAppendVersion)
	s.Record(DecisionMarkDeleted)
	s.Record(DecisionNoOp)
	s.Record(DecisionNoOp)

	assert.Equal(t, 1, s.Created)
	assert.Equal(t, 1, s.VersionsAppended)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 2, s.Untouched)
	assert.Equal(t, 5, s.Processed)
}
