package ports

import (
	"context"
	"time"

	"github.com/predictionscope/agent/internal/domain"
)

// MarketSource pulls the current state of tracked markets from one
// provider. A failing provider degrades to an empty contribution; it
// never aborts the run.
type MarketSource interface {
	Name() string
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
}

// SnapshotStore persists the single current snapshot. Load returns
// (nil, nil) when no snapshot exists yet; Save replaces the snapshot
// atomically so no reader observes a half-written one.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
}

// Ledger is the narrow interface over the durable, slug-unique record of
// everything ever produced.
type Ledger interface {
	Slugs(ctx context.Context) (map[string]struct{}, error)
	Append(ctx context.Context, entries []domain.LedgerEntry) error
}

// DecisionLog appends one immutable audit record per run.
type DecisionLog interface {
	Append(ctx context.Context, rec domain.RunRecord) error
}

// ProposeRequest carries everything the external strategist sees.
type ProposeRequest struct {
	Snapshot      domain.Snapshot
	Movers        []domain.Mover
	Trends        []domain.TrendSignal
	ExistingSlugs []string
	BucketWeights map[string]float64
}

// Strategist is the external scoring capability: observations in, ranked
// opportunities out. Its output is untrusted data.
type Strategist interface {
	Propose(ctx context.Context, req ProposeRequest) ([]domain.Opportunity, error)
}

// Writer is the external generation capability: one assignment in, one
// rendered article out, or a failure signal.
type Writer interface {
	Generate(ctx context.Context, a domain.Assignment, movers []domain.Mover) (domain.Article, error)
}

// ArtifactStore persists rendered articles at paths derived from
// (bucket, slug). Write reports the path for the audit record.
type ArtifactStore interface {
	Write(ctx context.Context, art domain.Article) (string, error)
}

// ReviewPublisher exposes a batch of drafts as a reviewable change set.
// Never auto-merges; strictly best-effort after durable state.
type ReviewPublisher interface {
	OpenReview(ctx context.Context, runID string, arts []domain.Article, summary string) (string, error)
}

// Notifier sends the run summary to an out-of-band channel. Best-effort.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
