package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mampersat/ratewings2025/internal/jobs"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/tracing"
)

// Store is the subset of location.Store the backfill needs.
type Store interface {
	ListReviewsForBackfill(ctx context.Context) ([]*location.Review, error)
	SetReviewHeat(ctx context.Context, id int64, heat int) (bool, error)
	SetReviewCreatedAt(ctx context.Context, id int64, t time.Time) (bool, error)
}

// Result summarizes a run. In dry-run mode the Updated counts are the
// updates that would have been made.
type Result struct {
	Scanned          int
	HeatUpdated      int
	CreatedAtUpdated int
	// Unchanged counts reviews where nothing parseable was found.
	Unchanged int
	// InvalidHeat counts parsed heat values outside 0-10, which are left null.
	InvalidHeat int
	Failed      int
}

// Runner executes the backfill.
type Runner struct {
	store   Store
	metrics *jobs.Metrics
	logger  *slog.Logger
	dryRun  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun reports changes without writing them.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithMetrics records job metrics.
func WithMetrics(m *jobs.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner over store.
func NewRunner(store Store, opts ...Option) *Runner {
	r := &Runner{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans every candidate review once. Only null columns are written, so
// repeated runs are idempotent. Per-review store failures are logged and
// counted; only a failed listing or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "backfill.run", attribute.Bool("dry_run", r.dryRun))
	finish := r.metrics.Start(jobs.JobTypeCommentBackfill)
	defer func() {
		tracing.SetAttributes(ctx,
			attribute.Int("reviews.scanned", res.Scanned),
			attribute.Int("reviews.heat_updated", res.HeatUpdated),
			attribute.Int("reviews.created_at_updated", res.CreatedAtUpdated),
			attribute.Int("reviews.failed", res.Failed),
		)
		r.metrics.AddItems(jobs.JobTypeCommentBackfill, jobs.ItemUpdated, res.HeatUpdated+res.CreatedAtUpdated)
		r.metrics.AddItems(jobs.JobTypeCommentBackfill, jobs.ItemSkipped, res.Unchanged+res.InvalidHeat)
		r.metrics.AddItems(jobs.JobTypeCommentBackfill, jobs.ItemFailed, res.Failed)
		finish(err)
		endSpan(err)
	}()

	reviews, err := r.store.ListReviewsForBackfill(ctx)
	if err != nil {
		r.metrics.IncJobErrors(jobs.JobTypeCommentBackfill, "database_error")
		return res, fmt.Errorf("failed to list reviews: %w", err)
	}

	for _, review := range reviews {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		r.backfillReview(ctx, review, &res)
	}

	r.logger.InfoContext(ctx, "backfill complete",
		slog.Bool("dry_run", r.dryRun),
		slog.Int("scanned", res.Scanned),
		slog.Int("heat_updated", res.HeatUpdated),
		slog.Int("created_at_updated", res.CreatedAtUpdated),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("invalid_heat", res.InvalidHeat),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (r *Runner) backfillReview(ctx context.Context, review *location.Review, res *Result) {
	if review.Comment == nil {
		res.Unchanged++
		return
	}
	comment := *review.Comment
	changed := false

	if review.Heat == nil {
		if heat, ok := ParseHeat(comment); ok {
			switch {
			case heat < location.MinHeat || heat > location.MaxHeat:
				res.InvalidHeat++
				r.logger.WarnContext(ctx, "heat out of range in comment",
					slog.Int64("review_id", review.ID),
					slog.Int("heat", heat))
			case r.apply(ctx, review.ID, "heat", func() (bool, error) {
				return r.store.SetReviewHeat(ctx, review.ID, heat)
			}, res):
				res.HeatUpdated++
				changed = true
			}
		}
	}

	if review.CreatedAt == nil {
		if createdAt, ok := ParseCreatedAt(comment); ok {
			if r.apply(ctx, review.ID, "created_at", func() (bool, error) {
				return r.store.SetReviewCreatedAt(ctx, review.ID, createdAt)
			}, res) {
				res.CreatedAtUpdated++
				changed = true
			}
		}
	}

	if !changed {
		res.Unchanged++
	}
}

// apply runs write unless in dry-run mode and reports whether a row changed.
func (r *Runner) apply(ctx context.Context, id int64, column string, write func() (bool, error), res *Result) bool {
	if r.dryRun {
		r.logger.InfoContext(ctx, "would update review", slog.Int64("review_id", id), slog.String("column", column))
		return true
	}

	updated, err := write()
	if err != nil {
		res.Failed++
		r.metrics.IncJobErrors(jobs.JobTypeCommentBackfill, "database_error")
		r.logger.ErrorContext(ctx, "failed to update review",
			slog.Int64("review_id", id),
			slog.String("column", column),
			slog.String("error", err.Error()))
		return false
	}
	if updated {
		tracing.AddEvent(ctx, "review_updated", attribute.Int64("review_id", id), attribute.String("column", column))
		r.logger.InfoContext(ctx, "updated review", slog.Int64("review_id", id), slog.String("column", column))
	}
	return updated
}
