// Package trendfeeds implements the trend-signal source strategies.
package trendfeeds

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/trends"
)

// RSSSource pulls trending headlines from an RSS or Atom feed.
type RSSSource struct {
	parser *gofeed.Parser
}

var _ trends.Source = (*RSSSource)(nil)

// NewRSSSource builds the shared feed parser.
func NewRSSSource() *RSSSource {
	return &RSSSource{parser: gofeed.NewParser()}
}

// Name identifies the strategy inside the registry.
func (s *RSSSource) Name() string {
	return "rss"
}

// Fetch parses the feed and returns up to req.Limit signals.
func (s *RSSSource) Fetch(ctx context.Context, req trends.Request) ([]domain.TrendSignal, error) {
	feed, err := s.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", req.Name, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	signals := make([]domain.TrendSignal, 0, limit)
	for _, item := range feed.Items {
		if len(signals) >= limit {
			break
		}
		if item.Title == "" {
			continue
		}

		sig := domain.TrendSignal{
			Title:  item.Title,
			Source: req.Name,
			URL:    item.Link,
		}
		if item.PublishedParsed != nil {
			sig.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			sig.PublishedAt = *item.UpdatedParsed
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
