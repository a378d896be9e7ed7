// Package providers implements the market data sources (Kalshi,
// Polymarket) behind ports.MarketSource.
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

// KalshiClient pulls open markets from the Kalshi trade API. Prices
// arrive in cents and are scaled to [0,1].
type KalshiClient struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
}

var _ ports.MarketSource = (*KalshiClient)(nil)

// NewKalshiClient wires the API base, key, and page size.
func NewKalshiClient(baseURL, apiKey string, limit int, client *http.Client) *KalshiClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if limit <= 0 {
		limit = 200
	}
	return &KalshiClient{baseURL: baseURL, apiKey: apiKey, limit: limit, client: client}
}

// Name identifies the provider in snapshots and logs.
func (k *KalshiClient) Name() string {
	return "kalshi"
}

type kalshiMarket struct {
	Ticker       string  `json:"ticker"`
	Title        string  `json:"title"`
	YesBid       float64 `json:"yes_bid"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`
	Category     string  `json:"category"`
	CloseTime    string  `json:"close_time"`
}

// FetchMarkets returns the currently open markets.
func (k *KalshiClient) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	endpoint := fmt.Sprintf("%s/markets?limit=%d&status=open", k.baseURL, k.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if k.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+k.apiKey)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch kalshi markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kalshi returned %s", resp.Status)
	}

	var payload struct {
		Markets []kalshiMarket `json:"markets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode kalshi markets: %w", err)
	}

	now := time.Now().UTC()
	markets := make([]domain.Market, 0, len(payload.Markets))
	for _, m := range payload.Markets {
		if m.Ticker == "" {
			continue
		}
		markets = append(markets, domain.Market{
			ID:         m.Ticker,
			Provider:   "kalshi",
			Title:      m.Title,
			Category:   m.Category,
			YesPrice:   m.YesBid / 100,
			Volume:     m.Volume,
			CloseDate:  m.CloseTime,
			ObservedAt: now,
		})
	}
	return markets, nil
}

// parsePrice reads the first element of a Polymarket outcomePrices value,
// which the gamma API serializes as a JSON-encoded string like
// "[\"0.31\", \"0.69\"]". Anything malformed is a zero price.
func parsePrice(raw string) float64 {
	if raw == "" {
		return 0
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(raw), &outcomes); err == nil && len(outcomes) > 0 {
		if p, err := strconv.ParseFloat(outcomes[0], 64); err == nil {
			return p
		}
		return 0
	}

	if p, err := strconv.ParseFloat(raw, 64); err == nil {
		return p
	}
	return 0
}

func withQuery(base string, params url.Values) string {
	return base + "?" + params.Encode()
}
