package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/predictionscope/agent/internal/allocate"
	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
	"github.com/predictionscope/agent/internal/publish"
)

type stubSource struct {
	name    string
	markets []domain.Market
	err     error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchMarkets(context.Context) ([]domain.Market, error) {
	return s.markets, s.err
}

type memSnapshots struct {
	snap  *domain.Snapshot
	saves int
}

func (m *memSnapshots) Load(context.Context) (*domain.Snapshot, error) { return m.snap, nil }

func (m *memSnapshots) Save(_ context.Context, snap domain.Snapshot) error {
	m.snap = &snap
	m.saves++
	return nil
}

type memLedger struct {
	entries map[string]domain.LedgerEntry
	appends int
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]domain.LedgerEntry{}}
}

func (m *memLedger) Slugs(context.Context) (map[string]struct{}, error) {
	slugs := make(map[string]struct{}, len(m.entries))
	for slug := range m.entries {
		slugs[slug] = struct{}{}
	}
	return slugs, nil
}

func (m *memLedger) Append(_ context.Context, entries []domain.LedgerEntry) error {
	m.appends++
	for _, e := range entries {
		if _, ok := m.entries[e.Slug]; ok {
			continue
		}
		m.entries[e.Slug] = e
	}
	return nil
}

type stubStrategist struct {
	opportunities []domain.Opportunity
	err           error
	lastReq       ports.ProposeRequest
}

func (s *stubStrategist) Propose(_ context.Context, req ports.ProposeRequest) ([]domain.Opportunity, error) {
	s.lastReq = req
	return s.opportunities, s.err
}

type stubWriter struct{ generated []string }

func (w *stubWriter) Generate(_ context.Context, a domain.Assignment, _ []domain.Mover) (domain.Article, error) {
	w.generated = append(w.generated, a.Slug)
	return domain.Article{
		Slug:        a.Slug,
		Bucket:      a.Bucket,
		Title:       a.Title,
		Content:     "draft",
		WordCount:   1,
		GeneratedAt: time.Now(),
	}, nil
}

type memArtifacts struct{ paths []string }

func (m *memArtifacts) Write(_ context.Context, art domain.Article) (string, error) {
	path := filepath.Join("content", art.Bucket, art.Slug+".md")
	m.paths = append(m.paths, path)
	return path, nil
}

type memDecisionLog struct{ records []domain.RunRecord }

func (m *memDecisionLog) Append(_ context.Context, rec domain.RunRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type harness struct {
	pipeline   *Pipeline
	snapshots  *memSnapshots
	ledger     *memLedger
	strategist *stubStrategist
	writer     *stubWriter
	artifacts  *memArtifacts
	log        *memDecisionLog
}

func market(id, provider string, price float64) domain.Market {
	return domain.Market{ID: id, Provider: provider, Title: id, YesPrice: price}
}

func opportunity(slug, bucket string, score float64) domain.Opportunity {
	return domain.Opportunity{Title: slug, Slug: slug, Bucket: bucket, Score: score}
}

func newPipelineHarness(t *testing.T, sources []ports.MarketSource, contentDir string) *harness {
	t.Helper()

	h := &harness{
		snapshots:  &memSnapshots{},
		ledger:     newMemLedger(),
		strategist: &stubStrategist{},
		writer:     &stubWriter{},
		artifacts:  &memArtifacts{},
		log:        &memDecisionLog{},
	}

	coordinator := publish.NewCoordinator(publish.Deps{
		Writer:    h.writer,
		Artifacts: h.artifacts,
		Ledger:    h.ledger,
		Log:       h.log,
	})

	h.pipeline = NewPipeline(PipelineDeps{
		Sources:     sources,
		Snapshots:   h.snapshots,
		Ledger:      h.ledger,
		Strategist:  h.strategist,
		Coordinator: coordinator,
		ContentDir:  contentDir,
		Plan: Plan{
			MaxPerRun:     3,
			MinScore:      0.55,
			MoveThreshold: 0.10,
			Buckets: []allocate.Bucket{
				{Name: "learn", Weight: 0.50, Floor: 1},
				{Name: "markets", Weight: 0.35, Floor: 1},
				{Name: "best", Weight: 0.15, Floor: 1},
			},
		},
	})
	return h
}

func TestRunOnceFullFlow(t *testing.T) {
	t.Parallel()

	sources := []ports.MarketSource{
		&stubSource{name: "kalshi", markets: []domain.Market{
			market("FED-25", "kalshi", 0.62),
			market("CPI-HOT", "kalshi", 0.31),
		}},
		&stubSource{name: "polymarket", err: errors.New("gateway timeout")},
	}

	h := newPipelineHarness(t, sources, "")
	h.snapshots.snap = &domain.Snapshot{Markets: []domain.Market{
		market("FED-25", "kalshi", 0.40), // +0.22 move
		market("CPI-HOT", "kalshi", 0.30),
	}}
	h.strategist.opportunities = []domain.Opportunity{
		opportunity("fed-rate-odds", "markets", 0.91),
		opportunity("what-is-kalshi", "learn", 0.80),
		opportunity("too-weak", "learn", 0.20),
	}

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := h.pipeline.RunOnce(context.Background(), "r1", now, false); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if h.snapshots.saves != 1 || len(h.snapshots.snap.Markets) != 2 {
		t.Fatalf("snapshot not replaced: %+v", h.snapshots)
	}

	if len(h.log.records) != 1 {
		t.Fatalf("expected one decision record, got %d", len(h.log.records))
	}
	rec := h.log.records[0]
	if rec.MarketsObserved != 2 || rec.MoversDetected != 1 {
		t.Fatalf("unexpected observation counts: %+v", rec)
	}
	if rec.Opportunities != 3 || rec.Admitted != 2 {
		t.Fatalf("unexpected planning counts: %+v", rec)
	}

	if len(h.writer.generated) != 2 {
		t.Fatalf("expected 2 generated drafts, got %v", h.writer.generated)
	}
	if len(h.ledger.entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(h.ledger.entries))
	}

	// Strategist sees the configured bucket shares.
	if h.strategist.lastReq.BucketWeights["learn"] != 0.50 {
		t.Fatalf("unexpected weights: %v", h.strategist.lastReq.BucketWeights)
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	t.Parallel()

	sources := []ports.MarketSource{
		&stubSource{name: "kalshi", markets: []domain.Market{market("FED-25", "kalshi", 0.62)}},
	}
	h := newPipelineHarness(t, sources, "")
	h.strategist.opportunities = []domain.Opportunity{
		opportunity("fed-rate-odds", "markets", 0.91),
	}

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := h.pipeline.RunOnce(context.Background(), "r1", now, false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(h.ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry after first run, got %d", len(h.ledger.entries))
	}

	// Same proposals again: the ledger rejects the slug at admission.
	if err := h.pipeline.RunOnce(context.Background(), "r2", now.Add(time.Hour), false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(h.ledger.entries) != 1 {
		t.Fatalf("second run must not add entries, got %d", len(h.ledger.entries))
	}
	if len(h.writer.generated) != 1 {
		t.Fatalf("second run must not generate, got %v", h.writer.generated)
	}

	second := h.log.records[1]
	if second.Admitted != 0 || len(second.Assignments) != 0 {
		t.Fatalf("second run should admit nothing: %+v", second)
	}
}

func TestRunOnceSeedsLedgerFromContentTree(t *testing.T) {
	t.Parallel()

	contentDir := t.TempDir()
	path := filepath.Join(contentDir, "learn", "what-is-kalshi.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	artifact := "---\ntitle: What Is Kalshi?\nslug: what-is-kalshi\nstatus: published\n---\n\nBody.\n"
	if err := os.WriteFile(path, []byte(artifact), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sources := []ports.MarketSource{
		&stubSource{name: "kalshi", markets: []domain.Market{market("FED-25", "kalshi", 0.62)}},
	}
	h := newPipelineHarness(t, sources, contentDir)
	h.strategist.opportunities = []domain.Opportunity{
		opportunity("what-is-kalshi", "learn", 0.95), // already on disk
		opportunity("fed-rate-odds", "markets", 0.80),
	}

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := h.pipeline.RunOnce(context.Background(), "r1", now, false); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, ok := h.ledger.entries["what-is-kalshi"]; !ok {
		t.Fatalf("ledger not seeded from content tree: %v", h.ledger.entries)
	}
	for _, slug := range h.writer.generated {
		if slug == "what-is-kalshi" {
			t.Fatalf("seeded slug must not be regenerated")
		}
	}
	if len(h.writer.generated) != 1 || h.writer.generated[0] != "fed-rate-odds" {
		t.Fatalf("unexpected generation set: %v", h.writer.generated)
	}
}

func TestRunOnceStrategistFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	sources := []ports.MarketSource{
		&stubSource{name: "kalshi", markets: []domain.Market{market("FED-25", "kalshi", 0.62)}},
	}
	h := newPipelineHarness(t, sources, "")
	h.strategist.err = errors.New("model returned malformed output")

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if err := h.pipeline.RunOnce(context.Background(), "r1", now, false); err != nil {
		t.Fatalf("strategist failure must not abort the run: %v", err)
	}

	if h.snapshots.saves != 1 {
		t.Fatalf("snapshot must still be replaced")
	}
	if len(h.log.records) != 1 || h.log.records[0].Opportunities != 0 {
		t.Fatalf("run must be audited with zero opportunities: %+v", h.log.records)
	}
	if len(h.writer.generated) != 0 {
		t.Fatalf("nothing should be generated: %v", h.writer.generated)
	}
}
