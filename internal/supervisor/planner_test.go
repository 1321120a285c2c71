// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/deep-research/internal/llm/llmtest"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/pkg/types"
)

func init() {
	now = func() time.Time { return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC) }
}

var brief = types.ResearchBrief{Text: "Compare heat pump and gas furnace running costs in Ohio."}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		kind   OutcomeKind
		tool   string
		topics []string
	}{
		{"single", `{"tool":"conduct_research","research_topic":" heat pumps "}`, OutcomeAction, ToolConductResearch, nil},
		{"batch drops blanks", `{"tool":"conduct_multiple_research","research_topics":["a"," ","b"]}`, OutcomeAction, ToolConductMultipleResearch, []string{"a", "b"}},
		{"think", "Plan:\n```json\n{\"tool\":\"think\",\"reflection\":\"start broad\"}\n```", OutcomeAction, ToolThink, nil},
		{"complete", `{"tool":"research_complete"}`, OutcomeFinal, ToolResearchComplete, nil},
		{"single without topic", `{"tool":"conduct_research"}`, OutcomeMalformed, ToolConductResearch, nil},
		{"batch without topics", `{"tool":"conduct_multiple_research","research_topics":[]}`, OutcomeMalformed, ToolConductMultipleResearch, nil},
		{"unknown tool", `{"tool":"browse"}`, OutcomeMalformed, "browse", nil},
		{"prose", "I think we are done.", OutcomeMalformed, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseOutcome(tt.reply)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.tool, out.Action.Tool)
			if tt.kind == OutcomeMalformed {
				assert.Error(t, out.Err)
			} else {
				assert.NoError(t, out.Err)
			}
			if tt.topics != nil {
				assert.Equal(t, tt.topics, out.Action.Topics)
			}
		})
	}
	assert.Equal(t, "heat pumps", ParseOutcome(tests[0].reply).Action.Topic)
}

func TestRun_CompletesWithNotes(t *testing.T) {
	defer goleak.VerifyNone(t)

	script := llmtest.New(
		llmtest.Text(`{"tool":"think","reflection":"split by fuel"}`),
		llmtest.Text(`{"tool":"conduct_multiple_research","research_topics":["heat pumps","gas furnaces"]}`),
		llmtest.Text(`{"tool":"conduct_research","research_topic":"Ohio utility rates"}`),
		llmtest.Text(`{"tool":"research_complete","summary":"costs covered"}`),
	)
	s := New(script, echoResearcher(nil), types.SupervisorConfig{Model: "planner"}, zaptest.NewLogger(t))

	res, err := s.Run(context.Background(), brief)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Iterations)
	assert.False(t, res.Exhausted)
	assert.Equal(t, "costs covered", res.FinalThinking)
	assert.Equal(t, []string{"heat pumps", "gas furnaces", "Ohio utility rates"}, topicsOf(res.Notes))

	reqs := script.Requests()
	assert.Equal(t, "planner", reqs[0].Model)
	assert.Contains(t, reqs[0].System, "Sat Oct 17, 2026")
	assert.Contains(t, reqs[0].System, "at most 3 topics")
	assert.Contains(t, reqs[0].System, "At most 6 actions")
	assert.Contains(t, reqs[0].Messages[0].Content, brief.Text)

	second := reqs[1].Messages
	assert.Equal(t, "Reflection recorded: split by fuel", second[len(second)-1].Content)
	third := reqs[2].Messages
	assert.Contains(t, third[len(third)-1].Content, "## Finding 2: gas furnaces...")

	assert.Equal(t, "Error during delegated research: supervisor is closed", s.DispatchSingle(context.Background(), "late"))
}

func TestRun_IterationLimitIsNotAnError(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"tool":"conduct_research","research_topic":"one"}`),
		llmtest.Text(`{"tool":"think","reflection":"need more"}`),
		llmtest.Text(`{"tool":"conduct_research","research_topic":"never"}`),
	)
	s := New(script, echoResearcher(nil), types.SupervisorConfig{MaxIterations: 2}, nil)

	res, err := s.Run(context.Background(), brief)
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, "need more", res.FinalThinking)
	assert.Equal(t, []string{"one"}, topicsOf(res.Notes))
	assert.Equal(t, 1, script.Remaining())
}

func TestRun_MalformedReplyConsumesIteration(t *testing.T) {
	script := llmtest.New(
		llmtest.Text("Let me think about this."),
		llmtest.Text(`{"tool":"research_complete"}`),
	)
	s := New(script, echoResearcher(nil), types.SupervisorConfig{}, nil)

	res, err := s.Run(context.Background(), brief)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Empty(t, res.Notes)

	msgs := script.Requests()[1].Messages
	assert.Contains(t, msgs[len(msgs)-1].Content, "Error: no JSON action found")
}

func TestRun_TransportErrorAborts(t *testing.T) {
	boom := errors.New("overloaded")
	script := llmtest.New(
		llmtest.Text(`{"tool":"conduct_research","research_topic":"one"}`),
		llmtest.Fail(boom),
	)
	s := New(script, echoResearcher(nil), types.SupervisorConfig{}, nil)

	res, err := s.Run(context.Background(), brief)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"one"}, topicsOf(res.Notes))
}

func TestRun_FailedBatchAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := ResearcherFunc(func(context.Context, string) (research.Output, error) {
		return research.Output{}, errors.New("worker crashed")
	})
	script := llmtest.New(llmtest.Text(`{"tool":"conduct_multiple_research","research_topics":["a","b"]}`))
	s := New(script, r, types.SupervisorConfig{}, nil)

	_, err := s.Run(context.Background(), brief)
	require.ErrorIs(t, err, ErrDispatchBatch)
}

func TestRun_EmptyBrief(t *testing.T) {
	script := llmtest.New()
	_, err := New(script, echoResearcher(nil), types.SupervisorConfig{}, nil).Run(context.Background(), types.ResearchBrief{})
	require.Error(t, err)
	assert.Zero(t, script.Calls())
}
