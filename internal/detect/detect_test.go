package detect

import (
	"testing"
	"time"

	"github.com/predictionscope/agent/internal/domain"
)

func market(provider, id string, price float64) domain.Market {
	return domain.Market{
		ID:         id,
		Provider:   provider,
		Title:      id,
		YesPrice:   price,
		ObservedAt: time.Date(2026, time.August, 20, 6, 0, 0, 0, time.UTC),
	}
}

func TestMoversColdStart(t *testing.T) {
	t.Parallel()

	current := domain.Snapshot{Markets: []domain.Market{
		market("kalshi", "FED-25DEC", 0.62),
		market("polymarket", "0xabc", 0.31),
	}}

	if got := Movers(current, nil, 0.10); len(got) != 0 {
		t.Fatalf("expected no movers on cold start, got %d", len(got))
	}
}

func TestMoversThresholdStrict(t *testing.T) {
	t.Parallel()

	previous := &domain.Snapshot{Markets: []domain.Market{
		market("kalshi", "exactly-at", 0.50),
		market("kalshi", "just-over", 0.50),
		market("kalshi", "unchanged", 0.50),
	}}
	current := domain.Snapshot{Markets: []domain.Market{
		market("kalshi", "exactly-at", 0.60),
		market("kalshi", "just-over", 0.61),
		market("kalshi", "unchanged", 0.50),
	}}

	movers := Movers(current, previous, 0.10)
	if len(movers) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(movers))
	}
	if movers[0].Market.ID != "just-over" {
		t.Fatalf("unexpected mover: %s", movers[0].Market.ID)
	}
	if movers[0].PreviousPrice != 0.50 {
		t.Fatalf("unexpected previous price: %v", movers[0].PreviousPrice)
	}
}

func TestMoversDownwardMove(t *testing.T) {
	t.Parallel()

	previous := &domain.Snapshot{Markets: []domain.Market{
		market("polymarket", "0xdef", 0.80),
	}}
	current := domain.Snapshot{Markets: []domain.Market{
		market("polymarket", "0xdef", 0.55),
	}}

	movers := Movers(current, previous, 0.10)
	if len(movers) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(movers))
	}
	if diff := movers[0].Delta - 0.25; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected delta: %v", movers[0].Delta)
	}
}

func TestMoversIgnoresUnmatched(t *testing.T) {
	t.Parallel()

	previous := &domain.Snapshot{Markets: []domain.Market{
		market("kalshi", "retired", 0.10),
	}}
	current := domain.Snapshot{Markets: []domain.Market{
		market("kalshi", "brand-new", 0.90),
		// Same id under a different provider is a different market.
		market("polymarket", "retired", 0.95),
	}}

	if movers := Movers(current, previous, 0.10); len(movers) != 0 {
		t.Fatalf("expected no movers, got %d", len(movers))
	}
}
