// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/metrics"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/pkg/types"
)

// NewCompleter builds the completion backend selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg types.AIConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case types.ProviderAnthropic:
		return llm.NewAnthropicBackend(cfg), nil
	case types.ProviderGemini:
		g, err := llm.NewGeminiBackend(ctx, cfg, "")
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
}

// Searcher is the search backend of a run, optionally cached.
type Searcher struct {
	search.Searcher
	cache *search.CachedSearcher
}

// NewSearcher builds the Tavily backend, wrapped in the per-run cache when
// cfg.Cache is set. When m is non-nil the cache counters are exported.
func NewSearcher(cfg types.SearchConfig, m *metrics.Metrics) (*Searcher, error) {
	var s search.Searcher = search.NewTavilyBackend(cfg)
	if !cfg.Cache {
		return &Searcher{Searcher: s}, nil
	}
	cache, err := search.NewCachedSearcher(s, "")
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		cache.Timeout = cfg.Timeout
	}
	if m != nil {
		if err := m.WatchCache(cache); err != nil {
			cache.Close()
			return nil, err
		}
	}
	return &Searcher{Searcher: cache, cache: cache}, nil
}

// Close releases the cache, if any.
func (s *Searcher) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
