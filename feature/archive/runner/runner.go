package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"odyssey-archiver/core/utils"
	"odyssey-archiver/feature/archive/models"
	"odyssey-archiver/feature/archive/reconcile"
	"odyssey-archiver/feature/archive/reddit"

	"go.uber.org/zap"
)

// State tracks the coordinator through one pass.
type State string

const (
	StateNotStarted   State = "not_started"
	StateListingRoots State = "listing_roots"
	StateProcessing   State = "processing"
	StateFinalizing   State = "finalizing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Failure classes, by the collaborator that produced them. Only fetch
// failures qualify for the whole-pass retry.
var (
	ErrFetch = errors.New("fetch failure")
	ErrWrite = errors.New("write failure")
)

// Store is the slice of the persistent store the coordinator needs.
type Store interface {
	Lookup(ctx context.Context, commentID string) (*reconcile.StoredComment, error)
	Apply(ctx context.Context, obs models.Observation, d reconcile.Decision) error
	InsertRunLog(ctx context.Context, runType, status, errorMessage string, processed int) error
}

// Snapshotter archives the raw payloads of a completed pass.
type Snapshotter interface {
	Upload(ctx context.Context, runType string, raws []json.RawMessage) error
}

// Runner drives one end-to-end reconciliation pass: list every thread,
// fetch each tree, route every observation through the differ and the
// writer, and persist exactly one run record.
type Runner struct {
	source    reddit.Source
	store     Store
	snapshots Snapshotter
	log       *zap.Logger

	state       State
	dryRun      bool
	threadLimit int
	retryWait   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun fetches and counts without touching the store. No writes, no
// run record.
func WithDryRun() Option {
	return func(r *Runner) { r.dryRun = true }
}

// WithThreadLimit caps the number of threads processed. Debugging aid; zero
// means no limit.
func WithThreadLimit(n int) Option {
	return func(r *Runner) { r.threadLimit = n }
}

// WithSnapshots enables the per-run raw payload archive.
func WithSnapshots(s Snapshotter) Option {
	return func(r *Runner) { r.snapshots = s }
}

// WithRetryWait overrides the pause before the single whole-pass retry.
func WithRetryWait(d time.Duration) Option {
	return func(r *Runner) { r.retryWait = d }
}

// New creates a run coordinator. The store may be nil only for dry runs.
func New(source reddit.Source, store Store, log *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		source:    source,
		store:     store,
		log:       log,
		state:     StateNotStarted,
		retryWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the coordinator's current state.
func (r *Runner) State() State {
	return r.state
}

// Result summarizes one reconciliation run.
type Result struct {
	Status       string
	ErrorMessage string
	Summary      reconcile.Summary
}

// Run executes one full sweep. A fetch failure retries the entire pass
// exactly once; a second consecutive failure, any write failure, or any
// integrity violation aborts the run. Either way exactly one run record is
// persisted (unless dry-running), and entities committed before an abort
// stay committed.
func (r *Runner) Run(ctx context.Context, runType string) (Result, error) {
	if runType != models.RunTypeInitial && runType != models.RunTypeScheduled {
		// Invalid trigger: the pass never starts, so no run record exists
		// to carry a bogus run kind.
		r.state = StateFailed
		return Result{Status: models.StatusFailure}, fmt.Errorf("unknown run type %q", runType)
	}

	summary, raws, err := r.pass(ctx)
	if err != nil && errors.Is(err, ErrFetch) {
		r.log.Warn("fetch failed, retrying the whole pass once", zap.Error(err))
		time.Sleep(r.retryWait)
		summary, raws, err = r.pass(ctx)
	}

	if err != nil {
		r.state = StateFailed
		r.log.Error("run aborted", zap.String("run_type", runType), zap.Error(err))
		if !r.dryRun {
			if logErr := r.store.InsertRunLog(ctx, runType, models.StatusFailure, err.Error(), summary.Processed); logErr != nil {
				r.log.Error("failed to record aborted run", zap.Error(logErr))
			}
		}
		return Result{
			Status:       models.StatusFailure,
			ErrorMessage: err.Error(),
			Summary:      summary,
		}, err
	}

	r.state = StateFinalizing
	if !r.dryRun {
		if r.snapshots != nil {
			// Best effort: the store is the source of truth, the snapshot is
			// an audit copy.
			if err := r.snapshots.Upload(ctx, runType, raws); err != nil {
				r.log.Warn("snapshot upload failed", zap.Error(err))
			}
		}
		if err := r.store.InsertRunLog(ctx, runType, models.StatusSuccess, "", summary.Processed); err != nil {
			r.state = StateFailed
			return Result{
				Status:       models.StatusFailure,
				ErrorMessage: err.Error(),
				Summary:      summary,
			}, fmt.Errorf("%w: record run: %w", ErrWrite, err)
		}
	}

	r.state = StateDone
	r.log.Info("run complete",
		zap.String("run_type", runType),
		zap.Bool("dry_run", r.dryRun),
		zap.String("summary", summary.String()),
	)
	return Result{Status: models.StatusSuccess, Summary: summary}, nil
}

// pass performs one sweep over every thread. Threads run sequentially:
// within a tree, parents must be written before their replies, and the
// store assumes a single active writer.
func (r *Runner) pass(ctx context.Context) (reconcile.Summary, []json.RawMessage, error) {
	var summary reconcile.Summary
	var raws []json.RawMessage

	r.state = StateListingRoots
	threads, err := r.source.ListThreads(ctx)
	if err != nil {
		return summary, nil, fmt.Errorf("%w: list threads: %w", ErrFetch, err)
	}
	if r.threadLimit > 0 && len(threads) > r.threadLimit {
		threads = threads[:r.threadLimit]
	}

	r.state = StateProcessing
	for i, thread := range threads {
		r.log.Info("scanning thread",
			zap.Int("index", i+1),
			zap.Int("total", len(threads)),
			zap.String("thread_id", thread.ID),
			zap.String("title", utils.Truncate(thread.Title, 80)),
		)

		observations, err := r.source.FetchThread(ctx, thread)
		if err != nil {
			return summary, nil, fmt.Errorf("%w: thread %s: %w", ErrFetch, thread.ID, err)
		}

		for _, obs := range observations {
			if r.dryRun {
				summary.Processed++
				continue
			}

			stored, err := r.store.Lookup(ctx, obs.CommentID)
			if err != nil {
				return summary, nil, fmt.Errorf("%w: lookup comment %s: %w", ErrWrite, obs.CommentID, err)
			}

			d := reconcile.Decide(obs, stored)
			if err := r.store.Apply(ctx, obs, d); err != nil {
				return summary, nil, fmt.Errorf("%w: apply %s to comment %s: %w", ErrWrite, d.Kind, obs.CommentID, err)
			}

			summary.Record(d.Kind)
			raws = append(raws, obs.Raw)
		}
	}

	return summary, raws, nil
}
