// Package publish drives generation for the selected assignments and
// commits the results: artifacts first, then one ledger append, then one
// decision log record, then best-effort review submission and
// notification.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

// Coordinator owns the write side of a run.
type Coordinator struct {
	writer    ports.Writer
	artifacts ports.ArtifactStore
	ledger    ports.Ledger
	log       ports.DecisionLog
	review    ports.ReviewPublisher
	notifier  ports.Notifier
	logger    *slog.Logger
}

// Deps wires the coordinator's collaborators. Review and Notifier are
// optional; everything else is required.
type Deps struct {
	Writer    ports.Writer
	Artifacts ports.ArtifactStore
	Ledger    ports.Ledger
	Log       ports.DecisionLog
	Review    ports.ReviewPublisher
	Notifier  ports.Notifier
	Logger    *slog.Logger
}

// NewCoordinator constructs the publication coordinator.
func NewCoordinator(deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		writer:    deps.Writer,
		artifacts: deps.Artifacts,
		ledger:    deps.Ledger,
		log:       deps.Log,
		review:    deps.Review,
		notifier:  deps.Notifier,
		logger:    logger,
	}
}

// ErrNothingProduced is returned when every assignment failed generation.
var ErrNothingProduced = fmt.Errorf("no assignment produced an article")

// Run executes the batch. rec already carries the observation counts and
// assignments; Run fills in outcomes before appending it to the decision
// log. Generation is sequential, one attempt per assignment, and one
// failure never aborts its siblings. With zero produced articles the
// ledger and artifact store stay untouched. Review submission starts
// only once both the ledger and the decision log are durable, so a run
// killed mid-submission is safe to retry. When dryRun is set, review
// submission and notification are skipped; durable state is written
// either way.
func (c *Coordinator) Run(ctx context.Context, assignments []domain.Assignment, movers []domain.Mover, rec domain.RunRecord, dryRun bool) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.DryRun = dryRun

	// Collecting: generate sequentially so every outcome is attributable
	// to exactly one assignment.
	var produced []domain.Article
	for _, a := range assignments {
		c.logger.Info("generating", "slug", a.Slug, "bucket", a.Bucket, "score", a.Score)
		art, err := c.writer.Generate(ctx, a, movers)
		if err != nil {
			c.logger.Error("generation failed", "slug", a.Slug, "error", err)
			rec.Failures = append(rec.Failures, domain.FailureRecord{Slug: a.Slug, Reason: err.Error()})
			continue
		}
		produced = append(produced, art)
	}

	if len(produced) == 0 {
		rec.ElapsedMillis = time.Since(rec.StartedAt).Milliseconds()
		if err := c.log.Append(ctx, rec); err != nil {
			return fmt.Errorf("append decision log: %w", err)
		}
		if len(assignments) == 0 {
			c.logger.Info("nothing to produce this run")
			return nil
		}
		return ErrNothingProduced
	}

	// Writing: artifacts land before the ledger is touched, so a crash
	// here leaves an orphaned file, never a ledger entry without content.
	entries := make([]domain.LedgerEntry, 0, len(produced))
	for _, art := range produced {
		path, err := c.artifacts.Write(ctx, art)
		if err != nil {
			return fmt.Errorf("write artifact %s: %w", art.Slug, err)
		}

		primary := ""
		if len(art.Keywords) > 0 {
			primary = art.Keywords[0]
		}
		entries = append(entries, domain.LedgerEntry{
			Slug:           art.Slug,
			Title:          art.Title,
			Bucket:         art.Bucket,
			PrimaryKeyword: primary,
			WordCount:      art.WordCount,
			Status:         domain.StatusDraft,
			CreatedAt:      art.GeneratedAt,
		})
		rec.Produced = append(rec.Produced, domain.ArtifactRecord{
			Slug:      art.Slug,
			Bucket:    art.Bucket,
			WordCount: art.WordCount,
			Path:      path,
		})
	}

	// Committing: one ledger mutation for the whole batch, then the audit
	// record. Nothing leaves the process until both are durable.
	if err := c.ledger.Append(ctx, entries); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}

	rec.ElapsedMillis = time.Since(rec.StartedAt).Milliseconds()
	if err := c.log.Append(ctx, rec); err != nil {
		return fmt.Errorf("append decision log: %w", err)
	}

	if !dryRun {
		url := c.submitForReview(ctx, rec.RunID, produced)
		c.notify(ctx, rec, url)
	}

	c.logger.Info("run committed", "produced", len(produced), "failed", len(rec.Failures))
	return nil
}

// submitForReview is best-effort: the ledger entries for this batch are
// already durable, and a failed submission must never lose or duplicate
// them. Retrying later is idempotent, keyed by slug.
func (c *Coordinator) submitForReview(ctx context.Context, runID string, produced []domain.Article) string {
	if c.review == nil {
		return ""
	}

	url, err := c.review.OpenReview(ctx, runID, produced, reviewSummary(produced))
	if err != nil {
		c.logger.Warn("review submission failed", "error", err)
		return ""
	}
	c.logger.Info("review opened", "url", url)
	return url
}

func (c *Coordinator) notify(ctx context.Context, rec domain.RunRecord, reviewURL string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.PublishDigest(ctx, digest(rec, reviewURL)); err != nil {
		c.logger.Warn("notification failed", "error", err)
	}
}

func reviewSummary(produced []domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d draft(s) generated for review:\n\n", len(produced))
	for _, art := range produced {
		fmt.Fprintf(&b, "- [%s] %s (%d words)\n", art.Bucket, art.Title, art.WordCount)
	}
	return b.String()
}

func digest(rec domain.RunRecord, reviewURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PredictionScope run %s: %d draft(s) ready for review\n", rec.RunID, len(rec.Produced))
	for _, art := range rec.Produced {
		fmt.Fprintf(&b, "- [%s] %s\n", art.Bucket, art.Slug)
	}
	if len(rec.Failures) > 0 {
		fmt.Fprintf(&b, "%d generation failure(s)\n", len(rec.Failures))
	}
	if reviewURL != "" {
		b.WriteString(reviewURL)
	}
	return b.String()
}
