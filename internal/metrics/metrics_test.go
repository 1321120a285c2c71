// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/llm/llmtest"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/internal/supervisor"
	"github.com/pdiddy/deep-research/pkg/types"
)

func TestCompleter(t *testing.T) {
	m := New()
	c := m.Completer("report", llmtest.New(llmtest.Text("ok"), llmtest.Fail(errors.New("boom"))))
	req := llm.UserMessage("", "hi")

	got, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	_, err = c.Complete(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("report", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("report", OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.completionDuration))
}

func TestSearcher(t *testing.T) {
	m := New()
	s := m.Searcher(search.SearcherFunc(func(_ context.Context, q search.Query) (search.Response, error) {
		if q.Text == "bad" {
			return search.Response{}, errors.New("429")
		}
		return search.Response{Answer: q.Text}, nil
	}))

	resp, err := s.Search(context.Background(), search.Query{Text: "good"})
	require.NoError(t, err)
	assert.Equal(t, "good", resp.Answer)
	_, err = s.Search(context.Background(), search.Query{Text: "bad"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues(OutcomeError)))
}

func TestResearcher(t *testing.T) {
	m := New()
	r := m.Researcher(supervisor.ResearcherFunc(func(_ context.Context, topic string) (research.Output, error) {
		switch topic {
		case "fail":
			return research.Output{}, errors.New("timeout")
		case "fallback":
			return research.Output{Compressed: types.CompressedFinding{Fallback: true}}, nil
		}
		return research.Output{}, nil
	}))

	for _, topic := range []string{"ok", "ok", "fallback", "fail"} {
		_, _ = r.Research(context.Background(), topic)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasks.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues(OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues(OutcomeError)))
	assert.Zero(t, testutil.ToFloat64(m.tasksInFlight))
}

func TestWatchCacheAndHandler(t *testing.T) {
	m := New()
	next := search.SearcherFunc(func(context.Context, search.Query) (search.Response, error) {
		return search.Response{Answer: "a"}, nil
	})
	cache, err := search.NewCachedSearcher(next, "metrics-test")
	require.NoError(t, err)
	defer cache.Close()
	require.NoError(t, m.WatchCache(cache))
	require.Error(t, m.WatchCache(cache), "collectors register once")

	for range 3 {
		_, err := cache.Search(context.Background(), search.Query{Text: "same"})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "deep_research_search_cache_hits_total 2")
	assert.Contains(t, string(body), "deep_research_search_cache_misses_total 1")
}
