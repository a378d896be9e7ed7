package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/predictionscope/agent/internal/config"
	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

// Writer generates one article per assignment via the model.
type Writer struct {
	client     *Client
	maxTokens  int
	brandVoice string
}

var _ ports.Writer = (*Writer)(nil)

// NewWriter builds the generation client.
func NewWriter(cfg config.LLMConfig) *Writer {
	maxTokens := cfg.GenerateTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Writer{client: NewClient(cfg), maxTokens: maxTokens, brandVoice: cfg.BrandVoice}
}

var bucketBriefs = map[string]string{
	"learn": `Write an educational article for the /learn/ section.
Write for someone who has never heard of prediction markets. Use clear,
jargon-free language, concrete examples from real markets, H2/H3
structure, and a short FAQ at the end.`,
	"markets": `Write a topical article for the /markets/ section.
Lead with what's happening in the real world, then the prediction market
angle. Use only the odds and prices provided in the market data — never
invent numbers — and explain what the prices mean in plain English. This
is not investment advice.`,
	"best": `Write an honest comparison article for the /best/ section.
Cover pros AND cons of each platform, clear comparison criteria, and who
each platform is not for. Include an affiliate disclosure and a risk
disclosure at the top. Never fabricate features or promo codes.`,
}

// Generate produces the article for one assignment. A response that is
// not the requested JSON object falls back to treating the whole text as
// the article body.
func (w *Writer) Generate(ctx context.Context, a domain.Assignment, movers []domain.Mover) (domain.Article, error) {
	system := w.systemPrompt(a)

	data, err := json.MarshalIndent(relevantMovers(a, movers), "", "  ")
	if err != nil {
		return domain.Article{}, fmt.Errorf("marshal market data: %w", err)
	}

	user := fmt.Sprintf(`Write the article: %s

Target keywords: %s
Description: %s

MARKET DATA (use these exact numbers):
%s

Respond with ONLY a JSON object:
{"content": "full article in markdown", "meta_description": "150-160 char meta description"}`,
		a.Title, strings.Join(a.Keywords, ", "), a.Description, data)

	raw, err := w.client.complete(ctx, system, user, w.maxTokens)
	if err != nil {
		return domain.Article{}, fmt.Errorf("generate %s: %w", a.Slug, err)
	}

	body, meta := parseArticle(raw)
	if strings.TrimSpace(body) == "" {
		return domain.Article{}, fmt.Errorf("generate %s: empty article body", a.Slug)
	}
	if meta == "" {
		meta = a.Description
	}

	return domain.Article{
		Slug:            a.Slug,
		Bucket:          a.Bucket,
		Title:           a.Title,
		Content:         body,
		MetaDescription: meta,
		Keywords:        a.Keywords,
		WordCount:       len(strings.Fields(body)),
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

func (w *Writer) systemPrompt(a domain.Assignment) string {
	brief, ok := bucketBriefs[a.Bucket]
	if !ok {
		brief = bucketBriefs["learn"]
	}

	var b strings.Builder
	b.WriteString("You are the lead writer for PredictionScope, a prediction market media site.\n\n")
	if w.brandVoice != "" {
		b.WriteString("BRAND VOICE:\n")
		b.WriteString(w.brandVoice)
		b.WriteString("\n\n")
	}
	b.WriteString(brief)
	return b.String()
}

// relevantMovers keeps the movers whose title overlaps the assignment's
// keywords or related market ids, so the prompt carries only data the
// article can actually cite.
func relevantMovers(a domain.Assignment, movers []domain.Mover) []map[string]any {
	related := make(map[string]struct{}, len(a.RelatedMarkets))
	for _, id := range a.RelatedMarkets {
		related[id] = struct{}{}
	}

	var words []string
	for _, kw := range a.Keywords {
		for _, w := range strings.Fields(strings.ToLower(kw)) {
			if len(w) > 3 {
				words = append(words, w)
			}
		}
	}

	var out []map[string]any
	for _, m := range movers {
		_, cited := related[m.Market.ID]
		if !cited {
			title := strings.ToLower(m.Market.Title)
			for _, w := range words {
				if strings.Contains(title, w) {
					cited = true
					break
				}
			}
		}
		if !cited {
			continue
		}
		out = append(out, map[string]any{
			"provider":   m.Market.Provider,
			"id":         m.Market.ID,
			"title":      m.Market.Title,
			"price":      m.Market.YesPrice,
			"change_24h": m.Market.YesPrice - m.PreviousPrice,
			"volume":     m.Market.Volume,
		})
	}
	return out
}

// parseArticle decodes the writer response, falling back to the raw text
// as the body when the model did not return the requested JSON object.
func parseArticle(raw string) (body, metaDescription string) {
	var parsed struct {
		Content         string `json:"content"`
		MetaDescription string `json:"meta_description"`
	}
	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Content != "" {
		return parsed.Content, parsed.MetaDescription
	}
	return cleaned, ""
}
