// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs one delegated investigation. A Worker searches and
// reflects in a bounded tool loop, then compresses what it found into a
// citation-preserving summary for the supervisor.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/citation"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/search"
	"github.com/pdiddy/deep-research/pkg/types"
)

// DefaultMaxToolCalls bounds the investigation loop when none is configured.
const DefaultMaxToolCalls = 15

// Tool names a worker may call.
const (
	ToolSearch = "search"
	ToolThink  = "think"
)

// Worker investigates topics. It holds no per-topic state, so one Worker
// may serve many concurrent investigations.
type Worker struct {
	completer llm.Completer
	searcher  search.Searcher
	cfg       types.ResearchConfig
	logger    *zap.Logger
}

// NewWorker builds a worker. A nil logger discards logs.
func NewWorker(c llm.Completer, s search.Searcher, cfg types.ResearchConfig, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	return &Worker{completer: c, searcher: s, cfg: cfg, logger: logger}
}

// Investigation is the outcome of the tool loop.
type Investigation struct {
	// Answer is the worker's final analysis.
	Answer string

	// Findings holds one entry per search, in call order.
	Findings []types.RawFinding

	// ToolCalls counts search and think actions.
	ToolCalls int

	// Forced is true when the budget ran out and the answer was demanded.
	Forced bool
}

// Output is the result of a complete research task.
type Output struct {
	Compressed  types.CompressedFinding
	RawFindings []types.RawFinding
}

// action is one step requested by the model.
type action struct {
	Tool              string  `json:"tool"`
	Query             string  `json:"query"`
	SearchDepth       string  `json:"search_depth"`
	MaxResults        int     `json:"max_results"`
	IncludeRawContent bool    `json:"include_raw_content"`
	Topic             string  `json:"topic"`
	Reflection        string  `json:"reflection"`
	FinalAnswer       *string `json:"final_answer"`
}

// parseAction reads a tool call from a model reply. ok is false when the
// reply holds no recognisable action, which callers treat as a prose answer.
func parseAction(reply string) (act action, ok bool) {
	body := llm.ExtractJSON(reply)
	if body == "" {
		return action{}, false
	}
	if err := json.Unmarshal([]byte(body), &act); err != nil {
		return action{}, false
	}
	if act.FinalAnswer != nil {
		return act, true
	}
	switch act.Tool {
	case ToolSearch, ToolThink:
		return act, true
	}
	return action{}, false
}

// Research runs Investigate then Compress on topic. Investigation errors
// are returned; compression never fails.
func (w *Worker) Research(ctx context.Context, topic string) (Output, error) {
	task := types.ResearchTask{ID: uuid.NewString(), Topic: topic}
	logger := w.logger.With(zap.String("task_id", task.ID))

	inv, err := w.investigate(ctx, task, logger)
	if err != nil {
		return Output{}, err
	}
	compressed := w.compress(ctx, task.Topic, inv.Findings, inv.Answer, logger)
	compressed.TaskID = task.ID
	return Output{Compressed: compressed, RawFindings: inv.Findings}, nil
}

// Investigate runs the tool loop for topic.
func (w *Worker) Investigate(ctx context.Context, topic string) (Investigation, error) {
	task := types.ResearchTask{ID: uuid.NewString(), Topic: topic}
	return w.investigate(ctx, task, w.logger.With(zap.String("task_id", task.ID)))
}

func (w *Worker) investigate(ctx context.Context, task types.ResearchTask, logger *zap.Logger) (Investigation, error) {
	topic := strings.TrimSpace(task.Topic)
	if topic == "" {
		return Investigation{}, fmt.Errorf("research topic is empty")
	}
	logger = logger.With(zap.String("topic", truncate(topic, 80)))
	logger.Info("research started")

	system := researcherSystemPrompt(w.cfg.MaxToolCalls)
	msgs := []llm.Message{{Role: types.RoleUser, Content: topic}}
	var inv Investigation

	for inv.ToolCalls < w.cfg.MaxToolCalls {
		reply, err := w.complete(ctx, system, msgs)
		if err != nil {
			return inv, fmt.Errorf("research step %d: %w", inv.ToolCalls+1, err)
		}

		act, ok := parseAction(reply)
		if !ok {
			inv.Answer = strings.TrimSpace(reply)
			logger.Debug("prose reply taken as final answer", zap.Int("iteration", inv.ToolCalls))
			break
		}
		if act.FinalAnswer != nil {
			inv.Answer = strings.TrimSpace(*act.FinalAnswer)
			break
		}

		inv.ToolCalls++
		msgs = append(msgs, llm.Message{Role: types.RoleAssistant, Content: reply})
		logger.Debug("tool call", zap.String("tool", act.Tool), zap.Int("iteration", inv.ToolCalls))

		switch act.Tool {
		case ToolSearch:
			q := search.Query{
				Text:              act.Query,
				Depth:             act.SearchDepth,
				MaxResults:        act.MaxResults,
				IncludeRawContent: act.IncludeRawContent,
				Topic:             act.Topic,
			}
			text, sources := search.Run(ctx, w.searcher, q)
			inv.Findings = append(inv.Findings, types.RawFinding{Query: act.Query, ResultText: text, Sources: sources})
			msgs = append(msgs, llm.Message{Role: types.RoleUser, Content: text})
		case ToolThink:
			msgs = append(msgs, llm.Message{Role: types.RoleUser, Content: "Reflection recorded: " + act.Reflection})
		}
	}

	if inv.Answer == "" && inv.ToolCalls >= w.cfg.MaxToolCalls {
		inv.Forced = true
		msgs = append(msgs, llm.Message{Role: types.RoleUser, Content: budgetExhaustedPrompt})
		reply, err := w.complete(ctx, system, msgs)
		if err != nil {
			return inv, fmt.Errorf("forcing final answer: %w", err)
		}
		inv.Answer = strings.TrimSpace(reply)
		if act, ok := parseAction(reply); ok && act.FinalAnswer != nil {
			inv.Answer = strings.TrimSpace(*act.FinalAnswer)
		}
		logger.Info("tool budget exhausted", zap.Int("tool_calls", inv.ToolCalls))
	}

	logger.Info("research complete", zap.Int("searches", len(inv.Findings)), zap.Int("tool_calls", inv.ToolCalls))
	return inv, nil
}

func (w *Worker) complete(ctx context.Context, system string, msgs []llm.Message) (string, error) {
	return w.completer.Complete(ctx, llm.Request{
		System:   system,
		Messages: append([]llm.Message(nil), msgs...),
		Model:    w.cfg.Model,
	})
}

// Compress condenses findings and answer into a cited summary. Any failure
// yields FallbackHeader followed by the answer verbatim, with Fallback set.
func (w *Worker) Compress(ctx context.Context, topic string, findings []types.RawFinding, answer string) types.CompressedFinding {
	return w.compress(ctx, topic, findings, answer, w.logger)
}

func (w *Worker) compress(ctx context.Context, topic string, findings []types.RawFinding, answer string, logger *zap.Logger) types.CompressedFinding {
	var catalog citation.Catalog
	catalog.AddAll(findings)

	req := llm.UserMessage(compressionSystemPrompt(), compressionContext(topic, findings, answer, catalog.String()))
	req.Model = w.cfg.CompressionModel

	text, err := w.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty compression output")
	}
	if err != nil {
		logger.Warn("compression failed, returning uncompressed answer", zap.Error(err))
		return types.CompressedFinding{Topic: topic, Text: FallbackHeader + answer, Fallback: true}
	}
	return types.CompressedFinding{Topic: topic, Text: citation.Renumber(strings.TrimSpace(text))}
}

// truncate shortens s to at most n runes, adding "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
