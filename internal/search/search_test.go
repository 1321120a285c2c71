// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/deep-research/pkg/types"
)

func score(f float64) *float64 { return &f }

func TestQueryNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Query
		want Query
	}{
		{"zero values", Query{Text: " q "}, Query{Text: "q", Depth: "basic", MaxResults: 5, Topic: "general"}},
		{"clamp high", Query{Text: "q", MaxResults: 50}, Query{Text: "q", Depth: "basic", MaxResults: 10, Topic: "general"}},
		{"negative", Query{Text: "q", MaxResults: -3}, Query{Text: "q", Depth: "basic", MaxResults: 5, Topic: "general"}},
		{"keep valid", Query{Text: "q", Depth: "Advanced", MaxResults: 1, Topic: "NEWS", IncludeRawContent: true},
			Query{Text: "q", Depth: "advanced", MaxResults: 1, Topic: "news", IncludeRawContent: true}},
		{"unknown depth and topic", Query{Text: "q", Depth: "deep", Topic: "sports"},
			Query{Text: "q", Depth: "basic", MaxResults: 5, Topic: "general"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestQueryWithDefaults(t *testing.T) {
	cfg := types.SearchConfig{Depth: "advanced", MaxResults: 7, Topic: "news", IncludeRawContent: true}

	got := Query{Text: "q"}.WithDefaults(cfg)
	assert.Equal(t, Query{Text: "q", Depth: "advanced", MaxResults: 7, Topic: "news", IncludeRawContent: true}, got)

	explicit := Query{Text: "q", Depth: "basic", MaxResults: 2, Topic: "general"}.WithDefaults(cfg)
	assert.Equal(t, "basic", explicit.Depth)
	assert.Equal(t, 2, explicit.MaxResults)
	assert.Equal(t, "general", explicit.Topic)
}

func TestRun(t *testing.T) {
	ok := SearcherFunc(func(_ context.Context, q Query) (Response, error) {
		return Response{Results: []Result{
			{Title: "Go", URL: "https://go.dev", Content: "The Go language"},
			{Title: "No URL"},
		}}, nil
	})

	text, sources := Run(context.Background(), ok, Query{Text: "golang"})
	assert.True(t, strings.HasPrefix(text, "Search Results:"))
	if diff := cmp.Diff([]types.Source{{Title: "Go", URL: "https://go.dev"}}, sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SoftFailure(t *testing.T) {
	failing := SearcherFunc(func(context.Context, Query) (Response, error) {
		return Response{}, errors.New("quota exceeded")
	})

	text, sources := Run(context.Background(), failing, Query{Text: "x"})
	assert.Equal(t, "Error performing search: quota exceeded", text)
	assert.Nil(t, sources)

	text, _ = Run(context.Background(), failing, Query{Text: "   "})
	assert.Equal(t, "Error performing search: empty query", text)
}
