package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/predictionscope/agent/internal/domain"
)

func entry(slug string) domain.LedgerEntry {
	return domain.LedgerEntry{
		Slug:      slug,
		Title:     slug,
		Bucket:    "learn",
		Status:    domain.StatusDraft,
		CreatedAt: time.Date(2026, time.August, 20, 6, 0, 0, 0, time.UTC),
	}
}

func TestSlugsEmptyLedger(t *testing.T) {
	t.Parallel()

	l := NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	slugs, err := l.Slugs(context.Background())
	if err != nil {
		t.Fatalf("Slugs on absent file: %v", err)
	}
	if len(slugs) != 0 {
		t.Fatalf("expected empty ledger, got %d slugs", len(slugs))
	}
}

func TestAppendAndSlugs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))

	if err := l.Append(ctx, []domain.LedgerEntry{entry("a"), entry("b")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	slugs, err := l.Slugs(ctx)
	if err != nil {
		t.Fatalf("Slugs: %v", err)
	}
	for _, want := range []string{"a", "b"} {
		if _, ok := slugs[want]; !ok {
			t.Fatalf("slug %s missing from ledger", want)
		}
	}
}

func TestAppendNeverOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))

	original := entry("a")
	original.Title = "original title"
	if err := l.Append(ctx, []domain.LedgerEntry{original}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	replay := entry("a")
	replay.Title = "replayed title"
	if err := l.Append(ctx, []domain.LedgerEntry{replay, entry("b")}); err != nil {
		t.Fatalf("Append replay: %v", err)
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "original title" {
		t.Fatalf("existing entry was overwritten: %q", entries[0].Title)
	}
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewFileLedger(filepath.Join(dir, "ledger.json"))
	if err := l.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append nil batch: %v", err)
	}

	entries, err := l.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries != nil {
		t.Fatalf("empty batch should not create the ledger file")
	}
}
