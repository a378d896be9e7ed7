// Package trends defines the pluggable trend-signal source strategies and
// the registry that resolves them from configuration.
package trends

import (
	"context"
	"fmt"

	"github.com/predictionscope/agent/internal/domain"
)

// Request carries all parameters required to pull signals from one
// configured source.
type Request struct {
	Name    string
	URL     string
	Limit   int
	Options map[string]string
}

// Source captures a single strategy implementation (RSS feed, HTML page).
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.TrendSignal, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by strategy name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("trend source %s is not registered", name)
}
