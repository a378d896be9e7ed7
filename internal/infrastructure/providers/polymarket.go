package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

// PolymarketClient pulls active markets from the Polymarket gamma API,
// ordered by 24h volume.
type PolymarketClient struct {
	baseURL string
	limit   int
	client  *http.Client
}

var _ ports.MarketSource = (*PolymarketClient)(nil)

// NewPolymarketClient wires the gamma API base and page size.
func NewPolymarketClient(baseURL string, limit int, client *http.Client) *PolymarketClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if limit <= 0 {
		limit = 200
	}
	return &PolymarketClient{baseURL: baseURL, limit: limit, client: client}
}

// Name identifies the provider in snapshots and logs.
func (p *PolymarketClient) Name() string {
	return "polymarket"
}

type polymarketMarket struct {
	ID             string  `json:"id"`
	ConditionID    string  `json:"condition_id"`
	Question       string  `json:"question"`
	OutcomePrices  string  `json:"outcomePrices"`
	Volume24h      float64 `json:"volume24hr"`
	GroupItemTitle string  `json:"groupItemTitle"`
	EndDate        string  `json:"endDate"`
	Slug           string  `json:"slug"`
}

// FetchMarkets returns active, unresolved markets.
func (p *PolymarketClient) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(p.limit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	endpoint := withQuery(p.baseURL+"/markets", params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch polymarket markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polymarket returned %s", resp.Status)
	}

	var payload []polymarketMarket
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode polymarket markets: %w", err)
	}

	now := time.Now().UTC()
	markets := make([]domain.Market, 0, len(payload))
	for _, m := range payload {
		id := m.ConditionID
		if id == "" {
			id = m.ID
		}
		if id == "" {
			continue
		}
		markets = append(markets, domain.Market{
			ID:         id,
			Provider:   "polymarket",
			Title:      m.Question,
			Category:   m.GroupItemTitle,
			YesPrice:   parsePrice(m.OutcomePrices),
			Volume:     m.Volume24h,
			CloseDate:  m.EndDate,
			URL:        "https://polymarket.com/event/" + m.Slug,
			ObservedAt: now,
		})
	}
	return markets, nil
}
