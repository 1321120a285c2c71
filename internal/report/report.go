// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns the brief and the supervisor's findings into the
// final cited markdown report.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/citation"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrReportGeneration marks a failed report. No partial report accompanies it.
var ErrReportGeneration = errors.New("report generation failed")

// DefaultMaxTokens caps the report completion when the config leaves it unset.
const DefaultMaxTokens = 8192

// Synthesizer writes the final report.
type Synthesizer struct {
	completer llm.Completer
	cfg       types.ReportConfig
	logger    *zap.Logger
}

// NewSynthesizer builds a synthesizer. A nil logger discards logs.
func NewSynthesizer(c llm.Completer, cfg types.ReportConfig, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Synthesizer{completer: c, cfg: cfg, logger: logger}
}

// JoinFindings concatenates the finding texts in order, separated by a rule.
func JoinFindings(notes []types.CompressedFinding) string {
	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		texts = append(texts, n.Text)
	}
	return strings.Join(texts, findingSeparator)
}

// Generate writes the report for brief from notes in one completion. The
// citations of the result are renumbered 1..N. Every failure wraps
// ErrReportGeneration.
func (s *Synthesizer) Generate(ctx context.Context, brief types.ResearchBrief, notes []types.CompressedFinding) (string, error) {
	if strings.TrimSpace(brief.Text) == "" {
		return "", fmt.Errorf("%w: research brief is empty", ErrReportGeneration)
	}
	prompt, err := renderPrompt(brief.Text, JoinFindings(notes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportGeneration, err)
	}

	s.logger.Info("generating final report", zap.Int("findings", len(notes)))
	req := llm.UserMessage("", prompt)
	req.Model = s.cfg.Model
	req.MaxTokens = s.cfg.MaxTokens

	text, err := s.completer.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrReportGeneration)
	}

	if missing := citation.Unresolved(text); len(missing) > 0 {
		s.logger.Warn("dropping citations missing from the source list", zap.Ints("markers", missing))
	}
	return citation.Renumber(text), nil
}
