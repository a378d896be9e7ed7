package domain

import "time"

// Market is a single tracked prediction market as observed from a provider.
// Identity across snapshots is (Provider, ID); a market is never mutated,
// only superseded by the next snapshot.
type Market struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	YesPrice   float64   `json:"yes_price"`
	Volume     float64   `json:"volume"`
	CloseDate  string    `json:"close_date,omitempty"`
	URL        string    `json:"url,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Key returns the cross-snapshot identity of the market.
func (m Market) Key() MarketKey {
	return MarketKey{Provider: m.Provider, ID: m.ID}
}

// MarketKey identifies a market across observation cycles.
type MarketKey struct {
	Provider string
	ID       string
}

// Snapshot is the full observed state at one point in time. It is written
// and replaced atomically as a whole; readers never see a partial one.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Markets []Market  `json:"markets"`
}

// Mover is a market whose price moved beyond the configured threshold
// between the previous and current snapshots. Run-scoped, never persisted
// on its own.
type Mover struct {
	Market        Market
	PreviousPrice float64
	Delta         float64
}

// TrendSignal is a trending headline or topic pulled from a trend source,
// fed to the strategist alongside market data.
type TrendSignal struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}
