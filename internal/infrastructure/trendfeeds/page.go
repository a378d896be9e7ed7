package trendfeeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/trends"
)

const (
	defaultItemSelector = "li"
	optionItemSelector  = "itemSelector"
	optionLinkSelector  = "linkSelector"
)

// PageSource scrapes trending topics from an HTML page. The CSS selectors
// come from the source's config options, so one strategy serves any
// trending-list page.
type PageSource struct {
	client *http.Client
}

var _ trends.Source = (*PageSource)(nil)

// NewPageSource wires an HTTP client.
func NewPageSource(client *http.Client) *PageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageSource{client: client}
}

// Name identifies the strategy inside the registry.
func (s *PageSource) Name() string {
	return "page"
}

// Fetch downloads the page and extracts one signal per matched item.
func (s *PageSource) Fetch(ctx context.Context, req trends.Request) ([]domain.TrendSignal, error) {
	doc, err := s.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.Name, err)
	}

	itemSelector := req.Options[optionItemSelector]
	if itemSelector == "" {
		itemSelector = defaultItemSelector
	}
	linkSelector := req.Options[optionLinkSelector]

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	var signals []domain.TrendSignal
	doc.Find(itemSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(signals) >= limit {
			return false
		}

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return true
		}

		sig := domain.TrendSignal{Title: title, Source: req.Name}
		if linkSelector != "" {
			if href, ok := sel.Find(linkSelector).First().Attr("href"); ok {
				sig.URL = href
			}
		}
		signals = append(signals, sig)
		return true
	})

	return signals, nil
}

func (s *PageSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PredictionScope/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}
