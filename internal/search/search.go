// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the web search provider on behalf of research
// workers. Backends implement Searcher; Run turns any failure into the text
// a worker feeds back to the model, so search never aborts an investigation.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Search depths and topics accepted by the provider.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"

	TopicGeneral = "general"
	TopicNews    = "news"
)

// Result bounds.
const (
	DefaultMaxResults = 5
	MaxResultsLimit   = 10
)

// Searcher runs one web search. Implementations must honour ctx.
type Searcher interface {
	Search(ctx context.Context, q Query) (Response, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q Query) (Response, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, q Query) (Response, error) {
	return f(ctx, q)
}

// Query holds the parameters of one search call.
type Query struct {
	Text              string `json:"query"`
	Depth             string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
	Topic             string `json:"topic,omitempty"`
}

// Normalize clamps MaxResults to [1,10] (zero selects 5) and replaces an
// unknown depth or topic with basic or general.
func (q Query) Normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	switch {
	case q.MaxResults <= 0:
		q.MaxResults = DefaultMaxResults
	case q.MaxResults > MaxResultsLimit:
		q.MaxResults = MaxResultsLimit
	}
	q.Depth = strings.ToLower(strings.TrimSpace(q.Depth))
	if q.Depth != DepthAdvanced {
		q.Depth = DepthBasic
	}
	q.Topic = strings.ToLower(strings.TrimSpace(q.Topic))
	if q.Topic != TopicNews {
		q.Topic = TopicGeneral
	}
	return q
}

// WithDefaults fills unset fields from cfg. Explicit values win.
func (q Query) WithDefaults(cfg types.SearchConfig) Query {
	if q.Depth == "" {
		q.Depth = cfg.Depth
	}
	if q.MaxResults == 0 {
		q.MaxResults = cfg.MaxResults
	}
	if !q.IncludeRawContent {
		q.IncludeRawContent = cfg.IncludeRawContent
	}
	if q.Topic == "" {
		q.Topic = cfg.Topic
	}
	return q
}

// Result is one ranked page.
type Result struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Content    string   `json:"content"`
	RawContent string   `json:"raw_content,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// Response is the provider's answer to a query.
type Response struct {
	// Answer is the provider's own summary, when it returns one.
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Sources returns the cited pages of r in result order.
func (r Response) Sources() []types.Source {
	if len(r.Results) == 0 {
		return nil
	}
	out := make([]types.Source, 0, len(r.Results))
	for _, res := range r.Results {
		if res.URL == "" {
			continue
		}
		out = append(out, types.Source{Title: res.Title, URL: res.URL})
	}
	return out
}

// Run searches and returns the formatted result text together with the
// pages it cites. Any failure is rendered as "Error performing search: ..."
// and yields no sources.
func Run(ctx context.Context, s Searcher, q Query) (string, []types.Source) {
	if strings.TrimSpace(q.Text) == "" {
		return "Error performing search: empty query", nil
	}
	resp, err := s.Search(ctx, q)
	if err != nil {
		return fmt.Sprintf("Error performing search: %v", err), nil
	}
	return Format(resp), resp.Sources()
}
