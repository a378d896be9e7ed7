package domain

import "time"

// Opportunity is a candidate article proposed by the strategist.
// Identity within a run is Slug. Strategist output is untrusted: missing
// or malformed fields are zeroed on ingest rather than rejected.
type Opportunity struct {
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Bucket         string   `json:"bucket"`
	Description    string   `json:"description"`
	Score          float64  `json:"score"`
	Keywords       []string `json:"keywords"`
	RelatedMarkets []string `json:"related_markets"`
}

// Assignment is an opportunity selected by the allocator for production
// this run. Order matters only for quota bookkeeping.
type Assignment struct {
	Opportunity
}

// Article is a produced draft: rendered markdown (frontmatter included)
// plus the metadata the ledger and review publisher need.
type Article struct {
	Slug            string
	Bucket          string
	Title           string
	Content         string
	MetaDescription string
	Keywords        []string
	WordCount       int
	GeneratedAt     time.Time
}

// LedgerEntry records one produced article forever. Slug is globally
// unique across the ledger; re-admission of a known slug is rejected
// upstream, and Append never overwrites.
type LedgerEntry struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Bucket         string    `json:"bucket"`
	PrimaryKeyword string    `json:"primary_keyword,omitempty"`
	WordCount      int       `json:"word_count"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ledger entry statuses. Entries start as drafts; promotion to published
// is an editorial action outside this system.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// RunRecord is the immutable audit entry appended once per run.
type RunRecord struct {
	RunID            string             `json:"run_id"`
	StartedAt        time.Time          `json:"started_at"`
	MarketsObserved  int                `json:"markets_observed"`
	MoversDetected   int                `json:"movers_detected"`
	TrendsObserved   int                `json:"trends_observed"`
	Opportunities    int                `json:"opportunities"`
	Admitted         int                `json:"admitted"`
	Assignments      []AssignmentRecord `json:"assignments"`
	Produced         []ArtifactRecord   `json:"produced"`
	Failures         []FailureRecord    `json:"failures,omitempty"`
	DryRun           bool               `json:"dry_run,omitempty"`
	ElapsedMillis    int64              `json:"elapsed_ms"`
}

// AssignmentRecord is the audit view of one selected assignment.
type AssignmentRecord struct {
	Slug   string  `json:"slug"`
	Bucket string  `json:"bucket"`
	Score  float64 `json:"score"`
}

// ArtifactRecord is the audit view of one produced artifact.
type ArtifactRecord struct {
	Slug      string `json:"slug"`
	Bucket    string `json:"bucket"`
	WordCount int    `json:"word_count"`
	Path      string `json:"path"`
}

// FailureRecord captures a per-assignment generation failure that was
// absorbed without aborting the batch.
type FailureRecord struct {
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}
