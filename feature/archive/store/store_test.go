package store

import (
	"context"
	"testing"
	"time"

	"odyssey-archiver/feature/archive/models"
	"odyssey-archiver/feature/archive/reconcile"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestStore wires the store to a sqlmock connection. Explicit
// transactions in the store still produce BEGIN/COMMIT; single-statement
// writes do not, because the default per-statement transaction is disabled.
func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	s := New(gdb)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "v-new" }
	return s, mock
}

func observation(body string) models.Observation {
	return models.Observation{
		CommentID:  "c1",
		ThreadID:   "t1",
		Body:       body,
		CreatedUTC: fixedNow,
		Raw:        []byte(`{"id":"c1"}`),
	}
}

func TestApplyCreate(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "odyssey_comment_versions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Apply(context.Background(), observation("hello"), reconcile.Decision{Kind: reconcile.DecisionCreate})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAppendVersion(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-old", "c1", "hello", true))
	// Demote, insert, move pointer: all inside one transaction.
	mock.ExpectExec(`UPDATE "odyssey_comment_versions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "odyssey_comment_versions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Apply(context.Background(), observation("hello world"), reconcile.Decision{Kind: reconcile.DecisionAppendVersion})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAppendVersionIdempotent(t *testing.T) {
	s, mock := newTestStore(t)

	// The stored latest already carries the observed body: the re-applied
	// append must not insert a second version, only refresh metadata.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-old", "c1", "hello world", true))
	mock.ExpectExec(`UPDATE "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Apply(context.Background(), observation("hello world"), reconcile.Decision{Kind: reconcile.DecisionAppendVersion})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAppendVersionIntegrityViolation(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-1", "c1", "a", true).
			AddRow("v-2", "c1", "b", true))
	mock.ExpectRollback()

	err := s.Apply(context.Background(), observation("c"), reconcile.Decision{Kind: reconcile.DecisionAppendVersion})

	assert.ErrorIs(t, err, ErrIntegrity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMarkDeleted(t *testing.T) {
	s, mock := newTestStore(t)

	obs := observation("[removed]")
	obs.Deleted = true

	// Flag flip plus metadata refresh; no version statements at all.
	mock.ExpectExec(`UPDATE "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Apply(context.Background(), obs, reconcile.Decision{Kind: reconcile.DecisionMarkDeleted})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyNoOpTouchesLastSeen(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE "odyssey_comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Apply(context.Background(), observation("hello"), reconcile.Decision{Kind: reconcile.DecisionNoOp})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupUnknownComment(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "odyssey_comments"`).
		WillReturnRows(sqlmock.NewRows([]string{"comment_id"}))

	stored, err := s.Lookup(context.Background(), "nope")

	assert.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLookupResolvesLatestThroughPointer(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "odyssey_comments"`).
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "latest_version_id", "is_deleted"}).
			AddRow("c1", "v-1", false))
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-1", "c1", "hello", true))

	stored, err := s.Lookup(context.Background(), "c1")

	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.LatestBody)
	assert.Equal(t, "hello", *stored.LatestBody)
}

func TestLookupFallsBackToLatestFlag(t *testing.T) {
	s, mock := newTestStore(t)

	// A partial run can leave the pointer unset; the flag query recovers it.
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comments"`).
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "latest_version_id", "is_deleted"}).
			AddRow("c1", nil, false))
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-1", "c1", "hello", true))

	stored, err := s.Lookup(context.Background(), "c1")

	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.LatestBody)
	assert.Equal(t, "hello", *stored.LatestBody)
}

func TestLookupPointerToForeignVersionIsIntegrityViolation(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "odyssey_comments"`).
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "latest_version_id", "is_deleted"}).
			AddRow("c1", "v-1", false))
	mock.ExpectQuery(`SELECT \* FROM "odyssey_comment_versions"`).
		WillReturnRows(sqlmock.NewRows([]string{"version_id", "comment_id", "body_text", "is_latest"}).
			AddRow("v-1", "c2", "hello", true))

	stored, err := s.Lookup(context.Background(), "c1")

	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, stored)
}

func TestInsertRunLog(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO "odyssey_logs"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertRunLog(context.Background(), models.RunTypeScheduled, models.StatusSuccess, "", 42)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
