package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/predictionscope/agent/internal/admit"
	"github.com/predictionscope/agent/internal/allocate"
	"github.com/predictionscope/agent/internal/detect"
	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/inventory"
	"github.com/predictionscope/agent/internal/ports"
	"github.com/predictionscope/agent/internal/publish"
	"github.com/predictionscope/agent/internal/trends"
)

// TrendFeed binds one configured trend source to its strategy name in the
// registry.
type TrendFeed struct {
	Strategy string
	Request  trends.Request
}

// Plan carries the admission and allocation parameters for a run.
type Plan struct {
	MaxPerRun     int
	MinScore      float64
	MoveThreshold float64
	Buckets       []allocate.Bucket
}

// Weights maps bucket names to their configured share, as shown to the
// strategist.
func (p Plan) Weights() map[string]float64 {
	weights := make(map[string]float64, len(p.Buckets))
	for _, b := range p.Buckets {
		weights[b.Name] = b.Weight
	}
	return weights
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources     []ports.MarketSource
	Snapshots   ports.SnapshotStore
	Ledger      ports.Ledger
	Trends      *trends.Registry
	Feeds       []TrendFeed
	Strategist  ports.Strategist
	Coordinator *publish.Coordinator
	Plan        Plan
	ContentDir  string
	Logger      *slog.Logger
}

// Pipeline implements the observe-analyze-plan-create workflow of one run.
type Pipeline struct {
	sources     []ports.MarketSource
	snapshots   ports.SnapshotStore
	ledger      ports.Ledger
	trends      *trends.Registry
	feeds       []TrendFeed
	strategist  ports.Strategist
	coordinator *publish.Coordinator
	plan        Plan
	contentDir  string
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sources:     deps.Sources,
		snapshots:   deps.Snapshots,
		ledger:      deps.Ledger,
		trends:      deps.Trends,
		feeds:       deps.Feeds,
		strategist:  deps.Strategist,
		coordinator: deps.Coordinator,
		plan:        deps.Plan,
		contentDir:  deps.ContentDir,
		logger:      logger,
	}
}

// RunOnce executes a full run: observe markets and trends, diff against
// the previous snapshot, propose and admit opportunities, allocate slots
// and hand the assignments to the publication coordinator.
func (p *Pipeline) RunOnce(ctx context.Context, runID string, now time.Time, dryRun bool) error {
	markets := p.observeMarkets(ctx)
	signals := p.observeTrends(ctx)

	previous, err := p.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	current := domain.Snapshot{TakenAt: now, Markets: markets}
	movers := detect.Movers(current, previous, p.plan.MoveThreshold)
	p.logger.Info("observed", "markets", len(markets), "movers", len(movers), "trends", len(signals))

	// The new snapshot replaces the old one before any content decisions
	// are made; the next run diffs against what this run saw.
	if err := p.snapshots.Save(ctx, current); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	known, err := p.knownSlugs(ctx)
	if err != nil {
		return err
	}

	opportunities := p.propose(ctx, current, movers, signals, known)
	admitted := admit.Filter(opportunities, known, p.plan.MinScore)
	assignments := allocate.Plan(admitted, p.plan.Buckets, p.plan.MaxPerRun)
	p.logger.Info("planned", "proposed", len(opportunities), "admitted", len(admitted), "assigned", len(assignments))

	rec := domain.RunRecord{
		RunID:           runID,
		StartedAt:       now,
		MarketsObserved: len(markets),
		MoversDetected:  len(movers),
		TrendsObserved:  len(signals),
		Opportunities:   len(opportunities),
		Admitted:        len(admitted),
	}
	for _, a := range assignments {
		rec.Assignments = append(rec.Assignments, domain.AssignmentRecord{
			Slug:   a.Slug,
			Bucket: a.Bucket,
			Score:  a.Score,
		})
	}

	return p.coordinator.Run(ctx, assignments, movers, rec, dryRun)
}

// observeMarkets fans out to every provider. A failing provider logs a
// warning and contributes nothing; the run proceeds on what it got.
func (p *Pipeline) observeMarkets(ctx context.Context) []domain.Market {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		markets []domain.Market
	)

	for _, src := range p.sources {
		wg.Add(1)
		go func(src ports.MarketSource) {
			defer wg.Done()

			found, err := src.FetchMarkets(ctx)
			if err != nil {
				p.logger.Warn("provider fetch failed", "provider", src.Name(), "error", err)
				return
			}

			mu.Lock()
			markets = append(markets, found...)
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return markets
}

// observeTrends pulls every configured feed through its strategy. Feeds
// fail soft, same as market providers.
func (p *Pipeline) observeTrends(ctx context.Context) []domain.TrendSignal {
	if p.trends == nil {
		return nil
	}

	var signals []domain.TrendSignal
	for _, feed := range p.feeds {
		src, err := p.trends.Resolve(feed.Strategy)
		if err != nil {
			p.logger.Warn("trend feed misconfigured", "feed", feed.Request.Name, "error", err)
			continue
		}

		found, err := src.Fetch(ctx, feed.Request)
		if err != nil {
			p.logger.Warn("trend fetch failed", "feed", feed.Request.Name, "error", err)
			continue
		}
		signals = append(signals, found...)
	}
	return signals
}

// knownSlugs loads the ledger, seeding it from the content tree when the
// tree predates the ledger file.
func (p *Pipeline) knownSlugs(ctx context.Context) (map[string]struct{}, error) {
	known, err := p.ledger.Slugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if len(known) > 0 || p.contentDir == "" {
		return known, nil
	}

	items, err := inventory.Scan(p.contentDir)
	if err != nil {
		return nil, fmt.Errorf("scan content tree: %w", err)
	}
	if len(items) == 0 {
		return known, nil
	}

	p.logger.Info("seeding ledger from content tree", "items", len(items))
	entries := inventory.LedgerEntries(items)
	if err := p.ledger.Append(ctx, entries); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	known = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e.Slug] = struct{}{}
	}
	return known, nil
}

// propose asks the strategist for candidates. Its output is untrusted, so
// a failure degrades to an empty proposal set rather than aborting the
// run; the decision log still records what was observed.
func (p *Pipeline) propose(ctx context.Context, snap domain.Snapshot, movers []domain.Mover, signals []domain.TrendSignal, known map[string]struct{}) []domain.Opportunity {
	if p.strategist == nil {
		return nil
	}

	slugs := make([]string, 0, len(known))
	for slug := range known {
		slugs = append(slugs, slug)
	}

	opportunities, err := p.strategist.Propose(ctx, ports.ProposeRequest{
		Snapshot:      snap,
		Movers:        movers,
		Trends:        signals,
		ExistingSlugs: slugs,
		BucketWeights: p.plan.Weights(),
	})
	if err != nil {
		p.logger.Warn("strategist failed, skipping production this run", "error", err)
		return nil
	}
	return opportunities
}
