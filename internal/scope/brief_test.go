// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/llm/llmtest"
	"github.com/pdiddy/deep-research/pkg/types"
)

var coffeeConversation = types.Conversation{
	{Role: types.RoleUser, Text: "best coffee shops"},
	{Role: types.RoleAssistant, Text: "Which city?"},
	{Role: types.RoleUser, Text: "San Francisco"},
}

func TestSynthesize(t *testing.T) {
	script := llmtest.New(llmtest.Text("```json\n{\"research_brief\": \"  I want the best coffee shops in San Francisco.  \"}\n```"))
	s := NewBriefSynthesizer(script, types.ScopeConfig{Model: "brief-model"}, nil)

	brief, err := s.Synthesize(context.Background(), coffeeConversation)
	require.NoError(t, err)
	assert.Equal(t, "I want the best coffee shops in San Francisco.", brief.Text)

	req := script.Requests()[0]
	assert.Equal(t, "brief-model", req.Model)
	assert.Contains(t, req.Messages[0].Content, "User: best coffee shops\nAssistant: Which city?\nUser: San Francisco")
	assert.Contains(t, req.System, "ResearchBrief")
}

func TestSynthesize_EmptyBriefIsInvalid(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(`{"research_brief": ""}`),
		llmtest.Text(`{"research_brief": "   "}`),
		llmtest.Text(`{"other": "field"}`),
	)
	s := NewBriefSynthesizer(script, types.ScopeConfig{}, nil)

	_, err := s.Synthesize(context.Background(), coffeeConversation)
	require.ErrorIs(t, err, llm.ErrStructuredOutputInvalid)
	assert.Equal(t, 3, script.Calls(), "one attempt plus the two default fixing passes")
}

func TestSynthesize_EmptyConversation(t *testing.T) {
	script := llmtest.New()
	_, err := NewBriefSynthesizer(script, types.ScopeConfig{}, nil).Synthesize(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 0, script.Calls())
}

func TestWorkflow_Run(t *testing.T) {
	script := llmtest.New(
		llmtest.Text(askCity),
		llmtest.Text(ready),
		llmtest.Text(`{"research_brief": "I want coffee shops in Paris."}`),
	)
	w := NewWorkflow(script, NewScriptedResponder("Paris"), types.ScopeConfig{}, nil)

	res, err := w.Run(context.Background(), "best coffee shops")
	require.NoError(t, err)
	assert.Equal(t, "I want coffee shops in Paris.", res.Brief.Text)
	assert.Equal(t, 2, res.Turns)
	assert.Len(t, res.Conversation, 3)
}

func TestWorkflow_ClarificationFailureSkipsBrief(t *testing.T) {
	script := llmtest.New(llmtest.Text(askCity))
	w := NewWorkflow(script, NewScriptedResponder(), types.ScopeConfig{MaxTurns: 1}, nil)

	res, err := w.Run(context.Background(), "q")
	require.ErrorIs(t, err, ErrClarificationExhausted)
	assert.Empty(t, res.Brief.Text)
	assert.Equal(t, 1, script.Calls())
}
