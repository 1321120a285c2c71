// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scope

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// BriefSynthesizer rewrites a clarified conversation as a research brief.
type BriefSynthesizer struct {
	completer llm.Completer
	cfg       types.ScopeConfig
	logger    *zap.Logger
}

// NewBriefSynthesizer builds a synthesizer. A nil logger discards logs.
func NewBriefSynthesizer(c llm.Completer, cfg types.ScopeConfig, logger *zap.Logger) *BriefSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BriefSynthesizer{completer: c, cfg: cfg, logger: logger}
}

func validateBrief(b types.ResearchBrief) error {
	if strings.TrimSpace(b.Text) == "" {
		return fmt.Errorf("research_brief is empty")
	}
	return nil
}

// Synthesize produces the brief. Output that stays malformed after the
// fixing passes fails with llm.ErrStructuredOutputInvalid.
func (s *BriefSynthesizer) Synthesize(ctx context.Context, conv types.Conversation) (types.ResearchBrief, error) {
	if len(conv) == 0 {
		return types.ResearchBrief{}, fmt.Errorf("conversation is empty")
	}
	prompt, err := renderPrompt(briefPromptTmpl, conv)
	if err != nil {
		return types.ResearchBrief{}, err
	}
	req := llm.UserMessage("", prompt)
	req.Model = s.cfg.Model

	brief, err := llm.CompleteStructured(ctx, s.completer, req, llm.StructuredOptions{
		Schema:        briefSchema,
		FixingRetries: s.cfg.FixingRetries,
		FixingModel:   s.cfg.FixingModel,
	}, validateBrief)
	if err != nil {
		return types.ResearchBrief{}, fmt.Errorf("generating research brief: %w", err)
	}
	brief.Text = strings.TrimSpace(brief.Text)
	s.logger.Info("research brief generated", zap.Int("length", len(brief.Text)))
	return brief, nil
}

// Result pairs the clarification outcome with the brief built from it.
type Result struct {
	Scope
	Brief types.ResearchBrief
}

// Workflow chains clarification and brief synthesis.
type Workflow struct {
	Controller *Controller
	Brief      *BriefSynthesizer
}

// NewWorkflow wires both scoping stages to one completer.
func NewWorkflow(c llm.Completer, r Responder, cfg types.ScopeConfig, logger *zap.Logger) *Workflow {
	return &Workflow{
		Controller: NewController(c, r, cfg, logger),
		Brief:      NewBriefSynthesizer(c, cfg, logger),
	}
}

// Run clarifies query and synthesizes the brief.
func (w *Workflow) Run(ctx context.Context, query string) (Result, error) {
	sc, err := w.Controller.Clarify(ctx, query)
	if err != nil {
		return Result{Scope: sc}, err
	}
	brief, err := w.Brief.Synthesize(ctx, sc.Conversation)
	if err != nil {
		return Result{Scope: sc}, err
	}
	return Result{Scope: sc, Brief: brief}, nil
}
