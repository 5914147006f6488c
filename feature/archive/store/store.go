package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"odyssey-archiver/core/utils"
	"odyssey-archiver/feature/archive/models"
	"odyssey-archiver/feature/archive/reconcile"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrIntegrity marks a stored state that violates the version-history
// invariants (more than one latest version, or a latest pointer resolving to
// another entity's version). Always a defect, never recoverable in-run.
var ErrIntegrity = errors.New("version history integrity violation")

// maxErrorMessageLen bounds the error detail persisted in the run log.
const maxErrorMessageLen = 8000

// Store applies differ decisions against the Postgres archive and records
// run outcomes. All multi-row mutations run in a single transaction so the
// "at most one latest version per comment" invariant is never observable as
// violated.
type Store struct {
	db *gorm.DB

	// Injectable for tests.
	now   func() time.Time
	newID func() string
}

// New creates a Store over an established database connection.
func New(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		now:   utils.UTCNow,
		newID: uuid.NewString,
	}
}

// Lookup loads the stored entity and its latest version body by natural key.
// Returns (nil, nil) when the comment has never been observed. The latest
// version resolves through the comment's pointer first, falling back to the
// is_latest flag for rows left behind by a partial run.
func (s *Store) Lookup(ctx context.Context, commentID string) (*reconcile.StoredComment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).First(&c, "comment_id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load comment %s: %w", commentID, err)
	}

	stored := &reconcile.StoredComment{Comment: c}

	if c.LatestVersionID != nil {
		var v models.CommentVersion
		err := s.db.WithContext(ctx).First(&v, "version_id = ?", *c.LatestVersionID).Error
		switch {
		case err == nil:
			if v.CommentID != c.CommentID {
				return nil, fmt.Errorf("%w: comment %s latest pointer resolves to a version of %s",
					ErrIntegrity, c.CommentID, v.CommentID)
			}
			stored.LatestBody = &v.BodyText
			return stored, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Dangling pointer from a partial run; try the flag below.
		default:
			return nil, fmt.Errorf("load latest version of %s: %w", commentID, err)
		}
	}

	var versions []models.CommentVersion
	if err := s.db.WithContext(ctx).
		Where("comment_id = ? AND is_latest = ?", commentID, true).
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("load latest version of %s: %w", commentID, err)
	}
	switch len(versions) {
	case 0:
		return stored, nil
	case 1:
		stored.LatestBody = &versions[0].BodyText
		return stored, nil
	default:
		return nil, fmt.Errorf("%w: comment %s has %d latest versions", ErrIntegrity, commentID, len(versions))
	}
}

// Apply executes one differ decision atomically.
func (s *Store) Apply(ctx context.Context, obs models.Observation, d reconcile.Decision) error {
	switch d.Kind {
	case reconcile.DecisionCreate:
		return s.create(ctx, obs)
	case reconcile.DecisionAppendVersion:
		return s.appendVersion(ctx, obs)
	case reconcile.DecisionMarkDeleted, reconcile.DecisionNoOp:
		// Both only touch the comment row; refreshMetadata sets the deletion
		// flag exactly when the observation carries it.
		return s.refreshMetadata(s.db.WithContext(ctx), obs, s.now(), nil)
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
}

// create inserts the comment row and its first version in one transaction,
// then points the comment at that version.
func (s *Store) create(ctx context.Context, obs models.Observation) error {
	now := s.now()
	versionID := s.newID()

	comment := models.Comment{
		CommentID:       obs.CommentID,
		ThreadID:        obs.ThreadID,
		ParentCommentID: obs.ParentCommentID,
		AuthorUsername:  obs.AuthorUsername,
		CreatedUTC:      obs.CreatedUTC,
		Score:           obs.Score,
		Permalink:       obs.Permalink,
		IsDeleted:       obs.Deleted,
		RawCommentJSON:  obs.Raw,
		FirstSeenUTC:    now,
		LastSeenUTC:     now,
	}
	version := models.CommentVersion{
		VersionID:    versionID,
		CommentID:    obs.CommentID,
		BodyText:     obs.Body,
		EditedUTC:    obs.EditedUTC,
		RetrievedUTC: now,
		IsLatest:     true,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("insert comment %s: %w", obs.CommentID, err)
		}
		// The version references the comment, and the pointer references the
		// version, so the insert order is fixed.
		if err := tx.Create(&version).Error; err != nil {
			return fmt.Errorf("insert first version of %s: %w", obs.CommentID, err)
		}
		if err := tx.Model(&models.Comment{}).
			Where("comment_id = ?", obs.CommentID).
			Update("latest_version_id", versionID).Error; err != nil {
			return fmt.Errorf("set latest pointer of %s: %w", obs.CommentID, err)
		}
		return nil
	})
}

// appendVersion demotes the current latest version, inserts the new one, and
// moves the pointer, all in one transaction. Re-running an already-applied
// append is a metadata refresh, not a duplicate version: the latest body is
// re-read inside the transaction before anything is written.
func (s *Store) appendVersion(ctx context.Context, obs models.Observation) error {
	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest []models.CommentVersion
		if err := tx.
			Where("comment_id = ? AND is_latest = ?", obs.CommentID, true).
			Find(&latest).Error; err != nil {
			return fmt.Errorf("load latest version of %s: %w", obs.CommentID, err)
		}
		if len(latest) > 1 {
			return fmt.Errorf("%w: comment %s has %d latest versions", ErrIntegrity, obs.CommentID, len(latest))
		}

		if len(latest) == 1 && latest[0].BodyText == obs.Body {
			// Already applied.
			return s.refreshMetadata(tx, obs, now, nil)
		}

		if len(latest) == 1 {
			if err := tx.Model(&models.CommentVersion{}).
				Where("version_id = ?", latest[0].VersionID).
				Update("is_latest", false).Error; err != nil {
				return fmt.Errorf("demote version %s: %w", latest[0].VersionID, err)
			}
		}

		versionID := s.newID()
		version := models.CommentVersion{
			VersionID:    versionID,
			CommentID:    obs.CommentID,
			BodyText:     obs.Body,
			EditedUTC:    obs.EditedUTC,
			RetrievedUTC: now,
			IsLatest:     true,
		}
		if err := tx.Create(&version).Error; err != nil {
			return fmt.Errorf("insert version of %s: %w", obs.CommentID, err)
		}

		return s.refreshMetadata(tx, obs, now, &versionID)
	})
}

// refreshMetadata overwrites the comment's mutable metadata (author, score,
// permalink, raw payload) and the last-seen timestamp. The deletion flag is
// sticky: it is set when the observation reports deletion and never reset.
func (s *Store) refreshMetadata(tx *gorm.DB, obs models.Observation, now time.Time, latestVersionID *string) error {
	updates := map[string]any{
		"author_username":  obs.AuthorUsername,
		"score":            obs.Score,
		"permalink":        obs.Permalink,
		"raw_comment_json": obs.Raw,
		"last_seen_utc":    now,
	}
	if obs.Deleted {
		updates["is_deleted"] = true
	}
	if latestVersionID != nil {
		updates["latest_version_id"] = *latestVersionID
	}

	res := tx.Model(&models.Comment{}).
		Where("comment_id = ?", obs.CommentID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update comment %s: %w", obs.CommentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update comment %s: no row found", obs.CommentID)
	}
	return nil
}

// InsertRunLog appends one run record. Called exactly once per pass, at the
// end or on fatal abort.
func (s *Store) InsertRunLog(ctx context.Context, runType, status, errorMessage string, processed int) error {
	entry := models.RunLog{
		ID:                        s.newID(),
		RunAt:                     s.now(),
		RunType:                   runType,
		Status:                    status,
		NumberOfCommentsProcessed: processed,
	}
	if errorMessage != "" {
		msg := utils.Truncate(errorMessage, maxErrorMessageLen)
		entry.ErrorMessage = &msg
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}
