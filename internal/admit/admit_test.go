package admit

import (
	"testing"

	"github.com/predictionscope/agent/internal/domain"
)

func opp(slug string, score float64) domain.Opportunity {
	return domain.Opportunity{Slug: slug, Title: slug, Bucket: "learn", Score: score}
}

func TestFilterMinScore(t *testing.T) {
	t.Parallel()

	opps := []domain.Opportunity{
		opp("keeps", 0.55),
		opp("drops", 0.5499),
		opp("keeps-too", 0.91),
	}

	got := Filter(opps, nil, 0.55)
	if len(got) != 2 {
		t.Fatalf("expected 2 admitted, got %d", len(got))
	}
	if got[0].Slug != "keeps" || got[1].Slug != "keeps-too" {
		t.Fatalf("unexpected admission order: %s, %s", got[0].Slug, got[1].Slug)
	}
}

func TestFilterLedgerDedup(t *testing.T) {
	t.Parallel()

	ledger := map[string]struct{}{"what-is-kalshi": {}}
	opps := []domain.Opportunity{
		opp("what-is-kalshi", 0.99),
		opp("what-is-polymarket", 0.60),
	}

	got := Filter(opps, ledger, 0.55)
	if len(got) != 1 {
		t.Fatalf("expected 1 admitted, got %d", len(got))
	}
	if got[0].Slug != "what-is-polymarket" {
		t.Fatalf("ledger slug admitted despite high score: %s", got[0].Slug)
	}
}

func TestFilterSlugMatchIsCaseSensitive(t *testing.T) {
	t.Parallel()

	ledger := map[string]struct{}{"what-is-kalshi": {}}
	got := Filter([]domain.Opportunity{opp("What-Is-Kalshi", 0.80)}, ledger, 0.55)
	if len(got) != 1 {
		t.Fatalf("differently cased slug should pass admission, got %d", len(got))
	}
}

func TestFilterKeepsBatchDuplicates(t *testing.T) {
	t.Parallel()

	opps := []domain.Opportunity{
		opp("same-slug", 0.70),
		opp("same-slug", 0.90),
	}

	got := Filter(opps, nil, 0.55)
	if len(got) != 2 {
		t.Fatalf("batch duplicates should both pass admission, got %d", len(got))
	}
}

func TestFilterEmpty(t *testing.T) {
	t.Parallel()

	if got := Filter(nil, nil, 0.55); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}
