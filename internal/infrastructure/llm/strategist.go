package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/predictionscope/agent/internal/config"
	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

const (
	// Strategist payload caps: only the strongest signals fit the prompt.
	maxMoversInPrompt  = 10
	maxMarketsInPrompt = 15
	maxTrendsInPrompt  = 15
	maxSlugsInPrompt   = 100
)

// Strategist asks the model for ranked content opportunities given the
// day's observations.
type Strategist struct {
	client    *Client
	maxTokens int
}

var _ ports.Strategist = (*Strategist)(nil)

// NewStrategist builds the scoring client.
func NewStrategist(cfg config.LLMConfig) *Strategist {
	maxTokens := cfg.ProposeTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Strategist{client: NewClient(cfg), maxTokens: maxTokens}
}

const strategistSystem = `You are the content strategist for PredictionScope, a prediction
market media site. You receive today's market observations and the site's
existing content, and you identify the best content opportunities.

Respond ONLY with a JSON array. No preamble. Each element:
{
  "bucket": "learn" | "markets" | "best",
  "slug": "url-friendly-slug",
  "title": "SEO-optimized title",
  "description": "2-3 sentence summary",
  "score": 0.0-1.0 relevance score,
  "keywords": ["2-5 target keywords"],
  "related_markets": ["market ids the article should cite"]
}`

type marketHighlight struct {
	Provider  string  `json:"provider"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change_24h,omitempty"`
	Volume    float64 `json:"volume"`
	Category  string  `json:"category,omitempty"`
	CloseDate string  `json:"close_date,omitempty"`
}

// Propose summarizes observations into a compact payload and parses the
// model's ranked opportunities. Output is sorted by score descending.
func (s *Strategist) Propose(ctx context.Context, req ports.ProposeRequest) ([]domain.Opportunity, error) {
	payload, err := json.MarshalIndent(s.buildContext(req), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal strategist payload: %w", err)
	}

	user := fmt.Sprintf("Identify 3-7 content opportunities from today's observations:\n\n%s", payload)
	raw, err := s.client.complete(ctx, strategistSystem, user, s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("propose opportunities: %w", err)
	}

	opps := parseOpportunities(raw)
	sort.SliceStable(opps, func(a, b int) bool { return opps[a].Score > opps[b].Score })
	return opps, nil
}

func (s *Strategist) buildContext(req ports.ProposeRequest) map[string]any {
	movers := make([]marketHighlight, 0, maxMoversInPrompt)
	for _, m := range req.Movers {
		if len(movers) >= maxMoversInPrompt {
			break
		}
		movers = append(movers, marketHighlight{
			Provider:  m.Market.Provider,
			Title:     m.Market.Title,
			Price:     m.Market.YesPrice,
			Change:    m.Market.YesPrice - m.PreviousPrice,
			Volume:    m.Market.Volume,
			Category:  m.Market.Category,
			CloseDate: m.Market.CloseDate,
		})
	}

	topMarkets := topByVolume(req.Snapshot.Markets, maxMarketsInPrompt)
	highlights := make([]marketHighlight, 0, len(topMarkets))
	for _, m := range topMarkets {
		highlights = append(highlights, marketHighlight{
			Provider:  m.Provider,
			Title:     m.Title,
			Price:     m.YesPrice,
			Volume:    m.Volume,
			Category:  m.Category,
			CloseDate: m.CloseDate,
		})
	}

	trendTitles := make([]string, 0, maxTrendsInPrompt)
	for _, t := range req.Trends {
		if len(trendTitles) >= maxTrendsInPrompt {
			break
		}
		trendTitles = append(trendTitles, t.Title)
	}

	slugs := req.ExistingSlugs
	if len(slugs) > maxSlugsInPrompt {
		slugs = slugs[:maxSlugsInPrompt]
	}

	return map[string]any{
		"date":             req.Snapshot.TakenAt,
		"big_movers":       movers,
		"top_markets":      highlights,
		"trending":         trendTitles,
		"existing_content": slugs,
		"bucket_weights":   req.BucketWeights,
	}
}

func topByVolume(markets []domain.Market, limit int) []domain.Market {
	sorted := make([]domain.Market, len(markets))
	copy(sorted, markets)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Volume > sorted[b].Volume })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

type wireOpportunity struct {
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Bucket         string   `json:"bucket"`
	Description    string   `json:"description"`
	Score          any      `json:"score"`
	Keywords       []string `json:"keywords"`
	RelatedMarkets []string `json:"related_markets"`
}

// parseOpportunities decodes the untrusted model output. A response that
// is not a JSON array yields zero opportunities; a malformed element is
// skipped; a malformed score becomes 0 and fails admission downstream.
func parseOpportunities(raw string) []domain.Opportunity {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &elements); err != nil {
		return nil
	}

	opps := make([]domain.Opportunity, 0, len(elements))
	for _, el := range elements {
		var w wireOpportunity
		if err := json.Unmarshal(el, &w); err != nil {
			continue
		}
		if w.Slug == "" || w.Bucket == "" {
			continue
		}

		score := asFloat(w.Score)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		opps = append(opps, domain.Opportunity{
			Title:          w.Title,
			Slug:           w.Slug,
			Bucket:         w.Bucket,
			Description:    w.Description,
			Score:          score,
			Keywords:       w.Keywords,
			RelatedMarkets: w.RelatedMarkets,
		})
	}
	return opps
}
