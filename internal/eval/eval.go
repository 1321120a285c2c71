// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package eval scores generated research briefs against a fixed dataset of
// scoping inputs. A judge model decides, point by point, whether each
// expected point made it into the brief.
package eval

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/scope"
	"github.com/pdiddy/deep-research/pkg/types"
)

// DefaultPassThreshold is the mean score a run needs to pass.
const DefaultPassThreshold = 0.8

// epsilon absorbs float rounding in threshold comparisons, so that a mean
// of exactly 0.8 computed as 0.7999999999999999 still passes.
const epsilon = 1e-9

// BriefFunc produces the research brief for one dataset input.
type BriefFunc func(ctx context.Context, input string) (types.ResearchBrief, error)

// WorkflowBriefs adapts a scoping workflow to BriefFunc. The workflow's
// responder answers any clarifying questions, so unattended runs should use
// scope.AutoResponder.
func WorkflowBriefs(wf *scope.Workflow) BriefFunc {
	return func(ctx context.Context, input string) (types.ResearchBrief, error) {
		res, err := wf.Run(ctx, input)
		if err != nil {
			return types.ResearchBrief{}, err
		}
		return res.Brief, nil
	}
}

// Summary is the outcome of an evaluation run.
type Summary struct {
	Results   []types.TestResult
	MeanScore float64
	Passed    bool
}

// Harness runs evaluation cases sequentially.
type Harness struct {
	brief  BriefFunc
	judge  llm.Completer
	cfg    types.EvalConfig
	logger *zap.Logger
}

// NewHarness builds a harness. Zero delays disable the pauses; a zero
// threshold means DefaultPassThreshold. A nil logger discards logs.
func NewHarness(brief BriefFunc, judge llm.Completer, cfg types.EvalConfig, logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	return &Harness{brief: brief, judge: judge, cfg: cfg, logger: logger}
}

// Passes reports whether score meets threshold.
func Passes(score, threshold float64) bool {
	return score >= threshold-epsilon
}

// Run evaluates cases in order, pausing PointDelay between judge calls and
// CaseDelay between cases. A case whose brief cannot be generated or judged
// scores 0 with its error recorded, and the run continues. Only context
// cancellation stops the run early.
func (h *Harness) Run(ctx context.Context, cases []types.EvaluationCase) (Summary, error) {
	var sum Summary
	for i, c := range cases {
		if i > 0 {
			if err := pause(ctx, h.cfg.CaseDelay); err != nil {
				return sum, err
			}
		}
		res, err := h.runCase(ctx, c)
		if err != nil {
			return sum, err
		}
		sum.Results = append(sum.Results, res)
	}

	sum = Summarize(sum.Results, h.cfg.PassThreshold)
	h.logger.Info("evaluation finished",
		zap.Int("cases", len(sum.Results)), zap.Float64("mean_score", sum.MeanScore), zap.Bool("passed", sum.Passed))
	return sum, nil
}

// Summarize averages the case scores. An empty run fails.
func Summarize(results []types.TestResult, threshold float64) Summary {
	sum := Summary{Results: results}
	if len(results) == 0 {
		return sum
	}
	var total float64
	for _, r := range results {
		total += r.Score
	}
	sum.MeanScore = total / float64(len(results))
	sum.Passed = Passes(sum.MeanScore, threshold)
	return sum
}

// runCase returns an error only when ctx is done.
func (h *Harness) runCase(ctx context.Context, c types.EvaluationCase) (types.TestResult, error) {
	logger := h.logger.With(zap.String("case", c.ID))
	res := types.TestResult{Case: c}

	brief, err := h.brief(ctx, c.Input)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn("brief generation failed", zap.Error(err))
		res.Error = err.Error()
		return res, nil
	}
	res.GeneratedBrief = brief.Text

	for i, point := range c.ExpectedPoints {
		if i > 0 {
			if err := pause(ctx, h.cfg.PointDelay); err != nil {
				return res, err
			}
		}
		pr, err := h.judgePoint(ctx, brief.Text, point)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Warn("judge call failed", zap.String("point", point), zap.Error(err))
			res.PointResults = nil
			res.Error = fmt.Sprintf("judging %q: %v", point, err)
			return res, nil
		}
		logger.Debug("point judged", zap.String("point", point), zap.Bool("included", pr.Included))
		res.PointResults = append(res.PointResults, pr)
	}
	res.Score = types.ScorePoints(res.PointResults)
	logger.Info("case scored", zap.Float64("score", res.Score))
	return res, nil
}

func (h *Harness) judgePoint(ctx context.Context, brief, point string) (types.PointResult, error) {
	system, err := renderJudgePrompt(brief, point)
	if err != nil {
		return types.PointResult{}, err
	}
	req := llm.UserMessage(system, judgeUserMessage)
	req.Model = h.cfg.JudgeModel

	reply, err := h.judge.Complete(ctx, req)
	if err != nil {
		return types.PointResult{}, err
	}
	included, reasoning := ParseJudgement(reply)
	return types.PointResult{Point: point, Included: included, Reasoning: reasoning}, nil
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteSummary prints the per-case table and totals. Each case passes at
// threshold or above.
func WriteSummary(w io.Writer, sum Summary, threshold float64) error {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	rule := strings.Repeat("=", 60)
	passed := 0
	for _, r := range sum.Results {
		if Passes(r.Score, threshold) {
			passed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nEVALUATION SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total Tests: %d\n", len(sum.Results))
	fmt.Fprintf(&b, "Passed (>=%.0f%%): %d\n", threshold*100, passed)
	fmt.Fprintf(&b, "Failed (<%.0f%%): %d\n", threshold*100, len(sum.Results)-passed)
	fmt.Fprintf(&b, "Average Score: %.1f%%\n%s\n", sum.MeanScore*100, rule)
	for _, r := range sum.Results {
		status := "FAIL"
		if Passes(r.Score, threshold) {
			status = "PASS"
		}
		fmt.Fprintf(&b, "%-10s  %6.1f%%  %s", r.Case.ID, r.Score*100, status)
		if r.Error != "" {
			fmt.Fprintf(&b, "  (%s)", r.Error)
		}
		b.WriteByte('\n')
	}
	if sum.Passed {
		b.WriteString("\nEVALUATION PASSED\n")
	} else {
		b.WriteString("\nEVALUATION FAILED\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
