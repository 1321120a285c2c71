// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/deep-research/internal/llm/llmtest"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/pkg/types"
)

func init() {
	now = func() time.Time { return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC) }
}

// fakeSearcher returns one result per query whose URL is derived from the
// query text; queries starting with "fail" return an error.
func fakeSearcher() search.Searcher {
	return search.SearcherFunc(func(_ context.Context, q search.Query) (search.Response, error) {
		if strings.HasPrefix(q.Text, "fail") {
			return search.Response{}, errors.New("rate limited")
		}
		slug := strings.ReplaceAll(q.Text, " ", "-")
		return search.Response{Results: []search.Result{{
			Title:   "About " + q.Text,
			URL:     "https://example.com/" + slug,
			Content: "Facts on " + q.Text,
		}}}, nil
	})
}

func TestInvestigate_SearchThinkAnswer(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"tool": "search", "query": "solid state batteries", "max_results": 3}`),
		llmtest.Text(`{"tool": "think", "reflection": "need costs"}`),
		llmtest.Text("Next:\n```json\n{\"tool\": \"search\", \"query\": \"battery costs\"}\n```"),
		llmtest.Text(`{"final_answer": "Solid state batteries are promising."}`),
	)
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{Model: "worker-model"}, zaptest.NewLogger(t))

	inv, err := w.Investigate(context.Background(), "solid state batteries")
	require.NoError(t, err)

	assert.Equal(t, "Solid state batteries are promising.", inv.Answer)
	assert.Equal(t, 3, inv.ToolCalls)
	assert.False(t, inv.Forced)
	require.Len(t, inv.Findings, 2, "reflections are not findings")
	assert.Equal(t, "solid state batteries", inv.Findings[0].Query)
	assert.Equal(t, "battery costs", inv.Findings[1].Query)
	assert.Contains(t, inv.Findings[0].ResultText, "--- SOURCE 1: About solid state batteries ---")
	assert.Equal(t, []types.Source{{Title: "About battery costs", URL: "https://example.com/battery-costs"}}, inv.Findings[1].Sources)

	reqs := script.Requests()
	assert.Equal(t, "worker-model", reqs[0].Model)
	assert.Contains(t, reqs[0].System, "at most 15 actions")
	third := reqs[2].Messages
	assert.Equal(t, "Reflection recorded: need costs", third[len(third)-1].Content)
}

func TestInvestigate_ProseIsFinalAnswer(t *testing.T) {
	script := llmtest.New(llmtest.Text("I already know: the answer is 42."))
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{}, nil)

	inv, err := w.Investigate(context.Background(), "meaning of life")
	require.NoError(t, err)
	assert.Equal(t, "I already know: the answer is 42.", inv.Answer)
	assert.Zero(t, inv.ToolCalls)
	assert.Empty(t, inv.Findings)
}

func TestInvestigate_BudgetForcesAnswer(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"tool": "search", "query": "a"}`),
		llmtest.Text(`{"tool": "search", "query": "b"}`),
		llmtest.Text(`{"final_answer": "best effort"}`),
	)
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{MaxToolCalls: 2}, nil)

	inv, err := w.Investigate(context.Background(), "topic")
	require.NoError(t, err)
	assert.True(t, inv.Forced)
	assert.Equal(t, "best effort", inv.Answer)
	assert.Equal(t, 2, inv.ToolCalls)
	assert.Len(t, inv.Findings, 2)

	last := script.Requests()[2].Messages
	assert.Equal(t, budgetExhaustedPrompt, last[len(last)-1].Content)
}

func TestInvestigate_SearchFailureIsSoft(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"tool": "search", "query": "fail this"}`),
		llmtest.Text(`{"final_answer": "nothing found"}`),
	)
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{}, nil)

	inv, err := w.Investigate(context.Background(), "topic")
	require.NoError(t, err)
	require.Len(t, inv.Findings, 1)
	assert.Equal(t, "Error performing search: rate limited", inv.Findings[0].ResultText)
	assert.Empty(t, inv.Findings[0].Sources)
}

func TestInvestigate_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("upstream 500")
	script := llmtest.New(llmtest.Text(`{"tool": "think", "reflection": "x"}`), llmtest.Fail(boom))
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{}, nil)

	_, err := w.Research(context.Background(), "topic")
	require.ErrorIs(t, err, boom)
}

func TestInvestigate_EmptyTopic(t *testing.T) {
	script := llmtest.New()
	_, err := NewWorker(script, fakeSearcher(), types.ResearchConfig{}, nil).Investigate(context.Background(), " ")
	require.Error(t, err)
	assert.Zero(t, script.Calls())
}

func TestCompress_BuildsContextAndRenumbers(t *testing.T) {
	findings := []types.RawFinding{
		{Query: "first query", ResultText: "result one", Sources: []types.Source{{Title: "One", URL: "https://one.example"}}},
		{Query: "second query", ResultText: "result two", Sources: []types.Source{{Title: "Two", URL: "https://two.example"}, {Title: "One", URL: "https://one.example"}}},
	}
	script := llmtest.New(llmtest.Text(
		"**Findings**\nTwo says so [2]. One agrees [1].\n\n### Sources\n[1] One: https://one.example\n[2] Two: https://two.example\n"))
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{CompressionModel: "small"}, nil)

	got := w.Compress(context.Background(), "topic", findings, "final analysis")
	assert.False(t, got.Fallback)
	assert.Equal(t, "topic", got.Topic)
	assert.Equal(t, "**Findings**\nTwo says so [1]. One agrees [2].\n\n### Sources\n\n[1] Two: https://two.example\n[2] One: https://one.example\n", got.Text)

	req := script.Requests()[0]
	assert.Equal(t, "small", req.Model)
	ctxText := req.Messages[0].Content
	for _, want := range []string{
		"RESEARCH TOPIC: topic\n",
		"SEARCH QUERIES EXECUTED:\n1. first query\n2. second query\n",
		"--- SEARCH 1 RESULTS ---\nresult one\n",
		"--- SEARCH 2 RESULTS ---\nresult two\n",
		"SOURCE CATALOGUE:\n[1] One: https://one.example\n[2] Two: https://two.example\n",
		"RESEARCHER'S FINAL ANALYSIS:\nfinal analysis\n",
	} {
		assert.Contains(t, ctxText, want)
	}
	assert.Less(t, strings.Index(ctxText, "SEARCH 1 RESULTS"), strings.Index(ctxText, "SEARCH 2 RESULTS"))
	assert.Less(t, strings.Index(ctxText, "SEARCH 2 RESULTS"), strings.Index(ctxText, "FINAL ANALYSIS"))
}

func TestCompress_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply llmtest.Reply
	}{
		{"transport error", llmtest.Fail(errors.New("timeout"))},
		{"empty output", llmtest.Text("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorker(llmtest.New(tt.reply), fakeSearcher(), types.ResearchConfig{}, nil)
			answer := "Raw answer with [3] markers\nkept verbatim."

			got := w.Compress(context.Background(), "topic", nil, answer)
			assert.True(t, got.Fallback)
			assert.Equal(t, "# Research Findings (Uncompressed)\n\n"+answer, got.Text)
		})
	}
}

func TestResearch(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"tool": "search", "query": "q1"}`),
		llmtest.Text(`{"final_answer": "answer"}`),
		llmtest.Text("Summary [1]\n\n### Sources\n[1] About q1: https://example.com/q1\n"),
	)
	w := NewWorker(script, fakeSearcher(), types.ResearchConfig{}, nil)

	out, err := w.Research(context.Background(), "topic")
	require.NoError(t, err)
	assert.NotEmpty(t, out.Compressed.TaskID)
	assert.Equal(t, "topic", out.Compressed.Topic)
	assert.False(t, out.Compressed.Fallback)
	assert.True(t, strings.HasPrefix(out.Compressed.Text, "Summary [1]"))

	want := []types.RawFinding{{
		Query:      "q1",
		ResultText: search.Format(search.Response{Results: []search.Result{{Title: "About q1", URL: "https://example.com/q1", Content: "Facts on q1"}}}),
		Sources:    []types.Source{{Title: "About q1", URL: "https://example.com/q1"}},
	}}
	if diff := cmp.Diff(want, out.RawFindings); diff != "" {
		t.Errorf("raw findings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		ok     bool
		tool   string
		answer string
	}{
		{"search", `{"tool":"search","query":"x"}`, true, ToolSearch, ""},
		{"think", `{"tool":"think","reflection":"r"}`, true, ToolThink, ""},
		{"final", `{"final_answer":"done"}`, true, "", "done"},
		{"unknown tool", `{"tool":"browse"}`, false, "", ""},
		{"prose", `just text`, false, "", ""},
		{"broken json", `{"tool": "search", `, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, ok := parseAction(tt.reply)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tool, act.Tool)
			if tt.answer != "" {
				require.NotNil(t, act.FinalAnswer)
				assert.Equal(t, tt.answer, *act.FinalAnswer)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo...", truncate("héllo world", 5))
}
