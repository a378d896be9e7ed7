package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/predictionscope/agent/internal/domain"
)

type fakeWriter struct {
	failSlugs map[string]bool
	calls     []string
}

func (w *fakeWriter) Generate(_ context.Context, a domain.Assignment, _ []domain.Mover) (domain.Article, error) {
	w.calls = append(w.calls, a.Slug)
	if w.failSlugs[a.Slug] {
		return domain.Article{}, errors.New("model returned malformed output")
	}
	return domain.Article{
		Slug:        a.Slug,
		Bucket:      a.Bucket,
		Title:       a.Title,
		Content:     "body for " + a.Slug,
		Keywords:    a.Keywords,
		WordCount:   3,
		GeneratedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeArtifacts struct {
	written []string
	fail    bool
}

func (s *fakeArtifacts) Write(_ context.Context, art domain.Article) (string, error) {
	if s.fail {
		return "", errors.New("disk full")
	}
	path := fmt.Sprintf("content/%s/%s.md", art.Bucket, art.Slug)
	s.written = append(s.written, path)
	return path, nil
}

type fakeLedger struct {
	appends [][]domain.LedgerEntry
}

func (l *fakeLedger) Slugs(context.Context) (map[string]struct{}, error) { return nil, nil }

func (l *fakeLedger) Append(_ context.Context, entries []domain.LedgerEntry) error {
	l.appends = append(l.appends, entries)
	return nil
}

type fakeDecisionLog struct {
	records []domain.RunRecord
}

func (d *fakeDecisionLog) Append(_ context.Context, rec domain.RunRecord) error {
	d.records = append(d.records, rec)
	return nil
}

type fakeReview struct {
	calls int
	fail  bool

	// Snapshot of the decision log size at submission time, to pin the
	// durable-state-first ordering.
	log                 *fakeDecisionLog
	recordsAtSubmission int
}

func (r *fakeReview) OpenReview(_ context.Context, runID string, _ []domain.Article, _ string) (string, error) {
	r.calls++
	if r.log != nil {
		r.recordsAtSubmission = len(r.log.records)
	}
	if r.fail {
		return "", errors.New("remote rejected branch")
	}
	return "https://example.com/pulls/" + runID, nil
}

type fakeNotifier struct {
	digests []string
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

func assignment(slug, bucket string, score float64) domain.Assignment {
	return domain.Assignment{Opportunity: domain.Opportunity{
		Title:    strings.ToUpper(slug),
		Slug:     slug,
		Bucket:   bucket,
		Score:    score,
		Keywords: []string{slug + " odds"},
	}}
}

func newHarness() (*Coordinator, *fakeWriter, *fakeArtifacts, *fakeLedger, *fakeDecisionLog, *fakeReview, *fakeNotifier) {
	writer := &fakeWriter{failSlugs: map[string]bool{}}
	artifacts := &fakeArtifacts{}
	ledger := &fakeLedger{}
	log := &fakeDecisionLog{}
	review := &fakeReview{log: log}
	notifier := &fakeNotifier{}
	c := NewCoordinator(Deps{
		Writer:    writer,
		Artifacts: artifacts,
		Ledger:    ledger,
		Log:       log,
		Review:    review,
		Notifier:  notifier,
	})
	return c, writer, artifacts, ledger, log, review, notifier
}

func TestRunPartialFailure(t *testing.T) {
	t.Parallel()

	c, writer, artifacts, ledger, log, _, _ := newHarness()
	writer.failSlugs["fed-rate-odds"] = true

	assignments := []domain.Assignment{
		assignment("what-is-kalshi", "learn", 0.9),
		assignment("fed-rate-odds", "markets", 0.8),
		assignment("how-to-read-odds", "learn", 0.7),
	}

	err := c.Run(context.Background(), assignments, nil, domain.RunRecord{RunID: "r1"}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(writer.calls) != 3 {
		t.Fatalf("expected one attempt per assignment, got %v", writer.calls)
	}
	if len(ledger.appends) != 1 {
		t.Fatalf("expected a single ledger append, got %d", len(ledger.appends))
	}
	if len(ledger.appends[0]) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(ledger.appends[0]))
	}
	if len(artifacts.written) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", artifacts.written)
	}

	if len(log.records) != 1 {
		t.Fatalf("expected exactly one decision record, got %d", len(log.records))
	}
	rec := log.records[0]
	if len(rec.Failures) != 1 || rec.Failures[0].Slug != "fed-rate-odds" {
		t.Fatalf("unexpected failures: %v", rec.Failures)
	}
	if len(rec.Produced) != 2 {
		t.Fatalf("unexpected produced: %v", rec.Produced)
	}
	if rec.Produced[0].Path != "content/learn/what-is-kalshi.md" {
		t.Fatalf("unexpected artifact path: %s", rec.Produced[0].Path)
	}
}

func TestRunAllFailuresKeepsStoresUntouched(t *testing.T) {
	t.Parallel()

	c, writer, artifacts, ledger, log, review, _ := newHarness()
	writer.failSlugs["a"] = true
	writer.failSlugs["b"] = true

	assignments := []domain.Assignment{
		assignment("a", "learn", 0.9),
		assignment("b", "markets", 0.8),
	}

	err := c.Run(context.Background(), assignments, nil, domain.RunRecord{RunID: "r2"}, false)
	if !errors.Is(err, ErrNothingProduced) {
		t.Fatalf("expected ErrNothingProduced, got %v", err)
	}

	if len(ledger.appends) != 0 {
		t.Fatalf("ledger must stay untouched, got %d appends", len(ledger.appends))
	}
	if len(artifacts.written) != 0 {
		t.Fatalf("artifact store must stay untouched, got %v", artifacts.written)
	}
	if review.calls != 0 {
		t.Fatalf("no review should be opened, got %d calls", review.calls)
	}

	// The failed run is still audited.
	if len(log.records) != 1 || len(log.records[0].Failures) != 2 {
		t.Fatalf("expected one decision record with 2 failures, got %+v", log.records)
	}
}

func TestRunEmptyAssignmentsIsNotAnError(t *testing.T) {
	t.Parallel()

	c, _, _, ledger, log, _, _ := newHarness()

	if err := c.Run(context.Background(), nil, nil, domain.RunRecord{RunID: "r3"}, false); err != nil {
		t.Fatalf("Run with no assignments: %v", err)
	}
	if len(ledger.appends) != 0 {
		t.Fatalf("ledger must stay untouched")
	}
	if len(log.records) != 1 {
		t.Fatalf("empty run still gets a decision record, got %d", len(log.records))
	}
}

func TestRunDryRunSkipsReviewAndNotification(t *testing.T) {
	t.Parallel()

	c, _, artifacts, ledger, log, review, notifier := newHarness()

	assignments := []domain.Assignment{assignment("what-is-kalshi", "learn", 0.9)}

	if err := c.Run(context.Background(), assignments, nil, domain.RunRecord{RunID: "r4"}, true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Durable state is written even on a dry run.
	if len(artifacts.written) != 1 || len(ledger.appends) != 1 {
		t.Fatalf("dry run must still persist artifacts and ledger")
	}
	if review.calls != 0 || len(notifier.digests) != 0 {
		t.Fatalf("dry run must skip review and notification")
	}
	if len(log.records) != 1 || !log.records[0].DryRun {
		t.Fatalf("decision record must flag the dry run: %+v", log.records)
	}
}

func TestRunReviewFailureIsAbsorbed(t *testing.T) {
	t.Parallel()

	c, _, _, ledger, log, review, notifier := newHarness()
	review.fail = true

	assignments := []domain.Assignment{assignment("what-is-kalshi", "learn", 0.9)}

	if err := c.Run(context.Background(), assignments, nil, domain.RunRecord{RunID: "r5"}, false); err != nil {
		t.Fatalf("review failure must not fail the run: %v", err)
	}
	if len(ledger.appends) != 1 {
		t.Fatalf("ledger append missing")
	}
	if len(log.records) != 1 {
		t.Fatalf("decision record missing despite review failure")
	}
	// Notification still goes out; it reports the run, not the review.
	if len(notifier.digests) != 1 {
		t.Fatalf("expected digest despite review failure, got %v", notifier.digests)
	}
	if strings.Contains(notifier.digests[0], "example.com") {
		t.Fatalf("failed review must not surface a URL: %q", notifier.digests[0])
	}
}

func TestRunSubmitsReviewOnlyAfterDecisionLog(t *testing.T) {
	t.Parallel()

	c, _, _, ledger, _, review, notifier := newHarness()

	assignments := []domain.Assignment{assignment("what-is-kalshi", "learn", 0.9)}

	if err := c.Run(context.Background(), assignments, nil, domain.RunRecord{RunID: "r6"}, false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A crash during submission must leave a complete audit trail, so
	// both the ledger and the decision record land first.
	if review.calls != 1 {
		t.Fatalf("expected one review submission, got %d", review.calls)
	}
	if review.recordsAtSubmission != 1 {
		t.Fatalf("decision log had %d records at submission time, want 1", review.recordsAtSubmission)
	}
	if len(ledger.appends) != 1 {
		t.Fatalf("ledger append missing")
	}
	if len(notifier.digests) != 1 || !strings.Contains(notifier.digests[0], "https://example.com/pulls/r6") {
		t.Fatalf("digest should carry the review URL: %v", notifier.digests)
	}
	if !strings.Contains(notifier.digests[0], "what-is-kalshi") {
		t.Fatalf("digest should mention the produced slug: %v", notifier.digests)
	}
}

func TestRunElapsedCoversWholeRun(t *testing.T) {
	t.Parallel()

	c, _, _, _, log, _, _ := newHarness()

	rec := domain.RunRecord{RunID: "r7", StartedAt: time.Now().Add(-time.Minute)}
	assignments := []domain.Assignment{assignment("what-is-kalshi", "learn", 0.9)}

	if err := c.Run(context.Background(), assignments, nil, rec, false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Elapsed is measured from the run start, not from generation start.
	if got := log.records[0].ElapsedMillis; got < time.Minute.Milliseconds() {
		t.Fatalf("elapsed %dms does not cover the run's earlier phases", got)
	}
}
