// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one research run end to end: scoping, supervised
// research, and the final report.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/metrics"
	"github.com/pdiddy/deep-research/internal/report"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/internal/scope"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/internal/supervisor"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Stage labels used for completion metrics.
const (
	StageScope      = "scope"
	StageResearch   = "research"
	StageSupervisor = "supervisor"
	StageReport     = "report"
)

// Deps are the collaborators of a pipeline.
type Deps struct {
	Completer llm.Completer
	Searcher  search.Searcher
	Responder scope.Responder

	// Metrics instruments every collaborator when set.
	Metrics *metrics.Metrics

	Logger *zap.Logger
}

// Pipeline runs research requests. Each run gets its own supervisor, so a
// Pipeline may serve consecutive runs.
type Pipeline struct {
	cfg    types.PipelineConfig
	scope  *scope.Workflow
	worker supervisor.Researcher
	report *report.Synthesizer

	supervisorLLM llm.Completer
	logger        *zap.Logger
}

// Result is everything a run produced.
type Result struct {
	RunID string

	// Scope is empty when the run started from a brief.
	Scope    scope.Scope
	Brief    types.ResearchBrief
	Research supervisor.Result
	Report   string
}

// New wires the stages. cfg should already have defaults applied.
func New(cfg types.PipelineConfig, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	completerFor := func(stage string) llm.Completer {
		if deps.Metrics != nil {
			return deps.Metrics.Completer(stage, deps.Completer)
		}
		return deps.Completer
	}
	searcher := deps.Searcher
	if deps.Metrics != nil {
		searcher = deps.Metrics.Searcher(searcher)
	}

	var worker supervisor.Researcher = research.NewWorker(completerFor(StageResearch), searcher, cfg.Research, logger.Named("research"))
	if deps.Metrics != nil {
		worker = deps.Metrics.Researcher(worker)
	}

	return &Pipeline{
		cfg:           cfg,
		scope:         scope.NewWorkflow(completerFor(StageScope), deps.Responder, cfg.Scope, logger.Named("scope")),
		worker:        worker,
		report:        report.NewSynthesizer(completerFor(StageReport), cfg.Report, logger.Named("report")),
		supervisorLLM: completerFor(StageSupervisor),
		logger:        logger,
	}
}

// Run scopes query with the user, then researches and reports on the brief.
func (p *Pipeline) Run(ctx context.Context, query string) (Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("research run started")

	sc, err := p.scope.Run(ctx, query)
	if err != nil {
		return Result{RunID: runID, Scope: sc.Scope}, fmt.Errorf("scoping: %w", err)
	}
	logger.Info("scope settled", zap.Int("turns", sc.Turns), zap.String("verification", sc.Verification))

	res, err := p.research(ctx, runID, sc.Brief, logger)
	res.Scope = sc.Scope
	return res, err
}

// RunBrief researches and reports on brief, skipping clarification.
func (p *Pipeline) RunBrief(ctx context.Context, brief types.ResearchBrief) (Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("research run started from brief")
	return p.research(ctx, runID, brief, logger)
}

func (p *Pipeline) research(ctx context.Context, runID string, brief types.ResearchBrief, logger *zap.Logger) (Result, error) {
	res := Result{RunID: runID, Brief: brief}

	sup := supervisor.New(p.supervisorLLM, p.worker, p.cfg.Supervisor, logger.Named("supervisor"))
	sr, err := sup.Run(ctx, brief)
	res.Research = sr
	if err != nil {
		return res, fmt.Errorf("research: %w", err)
	}
	logger.Info("research finished",
		zap.Int("findings", len(sr.Notes)), zap.Int("iterations", sr.Iterations), zap.Bool("exhausted", sr.Exhausted))

	text, err := p.report.Generate(ctx, brief, sr.Notes)
	if err != nil {
		return res, err
	}
	res.Report = text
	logger.Info("research run complete", zap.Int("report_length", len(text)))
	return res, nil
}

// Scope runs only the scoping stages.
func (p *Pipeline) Scope(ctx context.Context, query string) (scope.Result, error) {
	return p.scope.Run(ctx, query)
}

// Workflow exposes the scoping workflow, for the evaluation harness.
func (p *Pipeline) Workflow() *scope.Workflow { return p.scope }
