// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package supervisor plans a research run and delegates its topics to
// research workers. A planner loop picks one action per iteration; batch
// dispatches fan out to workers with bounded parallelism and fan back in
// preserving topic order.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/pkg/types"
)

var (
	// ErrDispatchBatch wraps the task failure that aborted a fail-fast batch.
	ErrDispatchBatch = errors.New("batch research dispatch failed")

	// ErrSupervisorClosed is returned for dispatches after SignalComplete.
	ErrSupervisorClosed = errors.New("supervisor is closed")
)

// Defaults applied by New when the config leaves a budget unset.
const (
	DefaultMaxConcurrentResearchers = 3
	DefaultMaxIterations            = 6
	DefaultTaskTimeout              = 10 * time.Minute
)

const (
	// CompleteMessage acknowledges the research_complete action.
	CompleteMessage = "Research marked as complete. Proceeding to final report generation."

	dispatchErrorPrefix = "Error during delegated research: "
	topicHeadingRunes   = 50
)

var findingSeparator = "\n\n" + strings.Repeat("=", 80) + "\n\n"

// Researcher runs one research task. *research.Worker implements it.
type Researcher interface {
	Research(ctx context.Context, topic string) (research.Output, error)
}

// ResearcherFunc adapts a function to Researcher.
type ResearcherFunc func(ctx context.Context, topic string) (research.Output, error)

// Research calls f.
func (f ResearcherFunc) Research(ctx context.Context, topic string) (research.Output, error) {
	return f(ctx, topic)
}

// Supervisor owns the notes of one research run. Dispatch methods may be
// called from the planner loop only; the parallelism lives inside
// DispatchBatch.
type Supervisor struct {
	completer  llm.Completer
	researcher Researcher
	cfg        types.SupervisorConfig
	logger     *zap.Logger

	notes  Notes
	closed atomic.Bool
}

// New builds a supervisor. A nil logger discards logs.
func New(c llm.Completer, r Researcher, cfg types.SupervisorConfig, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentResearchers <= 0 {
		cfg.MaxConcurrentResearchers = DefaultMaxConcurrentResearchers
	}
	if cfg.MaxBatchTopics <= 0 {
		cfg.MaxBatchTopics = cfg.MaxConcurrentResearchers
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.BatchFailure == "" {
		cfg.BatchFailure = types.BatchFailFast
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	return &Supervisor{completer: c, researcher: r, cfg: cfg, logger: logger}
}

// Notes returns a copy of the findings gathered so far.
func (s *Supervisor) Notes() []types.CompressedFinding {
	return s.notes.Snapshot()
}

// runTask executes one worker invocation under the task timeout.
func (s *Supervisor) runTask(ctx context.Context, topic string) (types.CompressedFinding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	out, err := s.researcher.Research(ctx, topic)
	if err != nil {
		return types.CompressedFinding{}, err
	}
	f := out.Compressed
	if f.Topic == "" {
		f.Topic = topic
	}
	return f, nil
}

// DispatchSingle researches one topic. Failures come back as
// "Error during delegated research: ..." text and leave the notes untouched.
func (s *Supervisor) DispatchSingle(ctx context.Context, topic string) string {
	if s.closed.Load() {
		return dispatchErrorPrefix + ErrSupervisorClosed.Error()
	}
	s.logger.Info("delegating research", zap.String("topic", headline(topic, 100)))

	f, err := s.runTask(ctx, topic)
	if err != nil {
		s.logger.Warn("delegated research failed", zap.String("topic", headline(topic, 100)), zap.Error(err))
		return dispatchErrorPrefix + err.Error()
	}
	s.notes.Append(f)
	return f.Text
}

// DispatchBatch researches up to MaxBatchTopics topics in parallel, at most
// MaxConcurrentResearchers at a time, and returns their findings in topic
// order. Under the fail-fast policy the first failure cancels the remaining
// tasks and the batch fails with ErrDispatchBatch without touching the
// notes. Under the isolate policy a failed topic contributes error text and
// the others are kept.
func (s *Supervisor) DispatchBatch(ctx context.Context, topics []string) (string, error) {
	if s.closed.Load() {
		return "", ErrSupervisorClosed
	}
	if len(topics) == 0 {
		return "", fmt.Errorf("%w: no topics given", ErrDispatchBatch)
	}
	if len(topics) > s.cfg.MaxBatchTopics {
		s.logger.Warn("batch truncated",
			zap.Int("requested", len(topics)), zap.Int("accepted", s.cfg.MaxBatchTopics))
		topics = topics[:s.cfg.MaxBatchTopics]
	}
	s.logger.Info("launching parallel research", zap.Int("topics", len(topics)))

	failFast := s.cfg.BatchFailure != types.BatchIsolate
	results := make([]types.CompressedFinding, len(topics))
	errs := make([]error, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentResearchers)
	for i, topic := range topics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := s.runTask(gctx, topic)
			if err != nil {
				if failFast {
					return fmt.Errorf("topic %d (%s): %w", i+1, headline(topic, topicHeadingRunes), err)
				}
				errs[i] = err
				return nil
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("batch abandoned", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrDispatchBatch, err)
	}

	sections := make([]string, len(topics))
	var kept []types.CompressedFinding
	for i, topic := range topics {
		text := results[i].Text
		if errs[i] != nil {
			text = dispatchErrorPrefix + errs[i].Error()
		} else {
			kept = append(kept, results[i])
		}
		sections[i] = fmt.Sprintf("## Finding %d: %s...\n\n%s", i+1, headline(topic, topicHeadingRunes), text)
	}
	s.notes.Append(kept...)

	s.logger.Info("parallel research complete", zap.Int("succeeded", len(kept)), zap.Int("failed", len(topics)-len(kept)))
	return strings.Join(sections, findingSeparator), nil
}

// Reflect records a planning note and returns its acknowledgement.
func (s *Supervisor) Reflect(note string) string {
	s.logger.Info("supervisor reflection", zap.String("reflection", note))
	return "Reflection recorded: " + note
}

// SignalComplete closes the supervisor and returns the final notes.
func (s *Supervisor) SignalComplete() []types.CompressedFinding {
	if !s.closed.Swap(true) {
		s.logger.Info("research complete", zap.Int("findings", s.notes.Len()))
	}
	return s.notes.Snapshot()
}

// headline returns the first n runes of s.
func headline(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
