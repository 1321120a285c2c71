// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// TavilyBackend queries the Tavily search API.
type TavilyBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	// Timeout bounds one search including retries.
	Timeout time.Duration

	// Defaults supplies depth, result count and topic for queries that
	// leave them unset.
	Defaults types.SearchConfig
}

// NewTavilyBackend builds a backend from the search settings.
func NewTavilyBackend(cfg types.SearchConfig) *TavilyBackend {
	return &TavilyBackend{
		Client:    &http.Client{},
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Defaults:  cfg,
	}
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
	Topic             string `json:"topic"`
}

// Search posts the query to Tavily and decodes the ranked results.
func (b *TavilyBackend) Search(ctx context.Context, q Query) (Response, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	q = q.WithDefaults(b.Defaults).Normalize()
	if q.Text == "" {
		return Response{}, fmt.Errorf("empty search query")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:            b.APIKey,
		Query:             q.Text,
		SearchDepth:       q.Depth,
		MaxResults:        q.MaxResults,
		IncludeRawContent: q.IncludeRawContent,
		Topic:             q.Topic,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return Response{}, fmt.Errorf("Tavily API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Response{}, fmt.Errorf("Tavily API returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decoding Tavily response: %w", err)
	}
	return out, nil
}
