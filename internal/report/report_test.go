// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/deep-research/internal/llm/llmtest"
	"github.com/pdiddy/deep-research/pkg/types"
)

func init() {
	now = func() time.Time { return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC) }
}

var (
	brief = types.ResearchBrief{Text: "Which noise-cancelling headphones under $400 are best for travel?"}
	notes = []types.CompressedFinding{
		{Topic: "Sony", Text: "Sony XM5 leads on ANC [1]."},
		{Topic: "Bose", Text: "Bose QC Ultra is most comfortable [1]."},
	}
)

func TestJoinFindings(t *testing.T) {
	got := JoinFindings(notes)
	assert.Equal(t, "Sony XM5 leads on ANC [1].\n\n"+strings.Repeat("=", 80)+"\n\nBose QC Ultra is most comfortable [1].", got)
	assert.Empty(t, JoinFindings(nil))
}

func TestGenerate(t *testing.T) {
	script := llmtest.New(llmtest.Text(
		"# Travel Headphones\n\nSony wins [4]. Bose is comfier [2]. Both fold [4, 2].\n\n### Sources\n[2] Bose review: https://bose.example\n[4] Sony review: https://sony.example\n"))
	s := NewSynthesizer(script, types.ReportConfig{Model: "writer"}, zaptest.NewLogger(t))

	got, err := s.Generate(context.Background(), brief, notes)
	require.NoError(t, err)
	assert.Equal(t,
		"# Travel Headphones\n\nSony wins [1]. Bose is comfier [2]. Both fold [1, 2].\n\n### Sources\n\n[1] Sony review: https://sony.example\n[2] Bose review: https://bose.example\n",
		got)

	req := script.Requests()[0]
	assert.Equal(t, "writer", req.Model)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, brief.Text)
	assert.Contains(t, prompt, JoinFindings(notes))
	assert.Contains(t, prompt, "Sat Oct 17, 2026")
	assert.Contains(t, prompt, "### Sources")
}

func TestGenerate_DropsUnlistedCitations(t *testing.T) {
	script := llmtest.New(llmtest.Text(
		"Sony wins [1]. Bose is comfier [2]. Both fold [3].\n\n### Sources\n[1] Sony review: https://sony.example\n[3] Fold test: https://fold.example\n"))
	core, logs := observer.New(zap.WarnLevel)
	s := NewSynthesizer(script, types.ReportConfig{}, zap.New(core))

	got, err := s.Generate(context.Background(), brief, notes)
	require.NoError(t, err)
	assert.Equal(t,
		"Sony wins [1]. Bose is comfier. Both fold [2].\n\n### Sources\n\n[1] Sony review: https://sony.example\n[2] Fold test: https://fold.example\n",
		got)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[2]", fmt.Sprint(entries[0].ContextMap()["markers"]))
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		brief types.ResearchBrief
		reply llmtest.Reply
	}{
		{"transport error", brief, llmtest.Fail(errors.New("503 overloaded"))},
		{"empty completion", brief, llmtest.Text("  \n")},
		{"empty brief", types.ResearchBrief{}, llmtest.Text("unused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(llmtest.New(tt.reply), types.ReportConfig{}, nil)
			got, err := s.Generate(context.Background(), tt.brief, notes)
			require.ErrorIs(t, err, ErrReportGeneration)
			assert.Empty(t, got)
		})
	}
}

func TestGenerate_NoFindings(t *testing.T) {
	script := llmtest.New(llmtest.Text("# Report\n\nNothing conclusive was found."))
	s := NewSynthesizer(script, types.ReportConfig{MaxTokens: 1000}, nil)

	got, err := s.Generate(context.Background(), brief, nil)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\nNothing conclusive was found.", got)
	assert.Equal(t, 1000, script.Requests()[0].MaxTokens)
}
