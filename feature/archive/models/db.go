package models

import (
	"encoding/json"
	"time"
)

// Comment represents the 'odyssey_comments' table: one row per comment ever
// observed, keyed by the source's natural comment ID. Rows are never deleted;
// source-side removal flips IsDeleted.
type Comment struct {
	CommentID       string          `gorm:"column:comment_id;primaryKey"`
	ThreadID        string          `gorm:"column:thread_id"`
	ParentCommentID *string         `gorm:"column:parent_comment_id"`
	AuthorUsername  *string         `gorm:"column:author_username"`
	CreatedUTC      time.Time       `gorm:"column:created_utc"`
	Score           *int            `gorm:"column:score"`
	Permalink       *string         `gorm:"column:permalink"`
	IsDeleted       bool            `gorm:"column:is_deleted"`
	LatestVersionID *string         `gorm:"column:latest_version_id"`
	RawCommentJSON  json.RawMessage `gorm:"column:raw_comment_json;type:jsonb"`
	FirstSeenUTC    time.Time       `gorm:"column:first_seen_utc"`
	LastSeenUTC     time.Time       `gorm:"column:last_seen_utc"`
}

// TableName overrides the table name used by GORM.
func (Comment) TableName() string {
	return "odyssey_comments"
}

// CommentVersion represents the 'odyssey_comment_versions' table: one
// immutable body snapshot per content change. Versions are append-only;
// a partial unique index on (comment_id) WHERE is_latest enforces at most
// one latest version per comment.
type CommentVersion struct {
	VersionID    string     `gorm:"column:version_id;primaryKey"`
	CommentID    string     `gorm:"column:comment_id"`
	BodyText     string     `gorm:"column:body_text"`
	EditedUTC    *time.Time `gorm:"column:edited_utc"`
	RetrievedUTC time.Time  `gorm:"column:retrieved_utc"`
	IsLatest     bool       `gorm:"column:is_latest"`
}

// TableName overrides the table name used by GORM.
func (CommentVersion) TableName() string {
	return "odyssey_comment_versions"
}

// RunLog represents the 'odyssey_logs' table: one append-only row per
// reconciliation pass, written exactly once at the end of the pass or on
// fatal abort.
type RunLog struct {
	ID                        string    `gorm:"column:id;primaryKey"`
	RunAt                     time.Time `gorm:"column:run_at"`
	RunType                   string    `gorm:"column:run_type"`
	Status                    string    `gorm:"column:status"`
	ErrorMessage              *string   `gorm:"column:error_message"`
	NumberOfCommentsProcessed int       `gorm:"column:number_of_comments_processed"`
}

// TableName overrides the table name used by GORM.
func (RunLog) TableName() string {
	return "odyssey_logs"
}
