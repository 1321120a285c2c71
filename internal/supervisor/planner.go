// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Planner tool names.
const (
	ToolConductResearch         = "conduct_research"
	ToolConductMultipleResearch = "conduct_multiple_research"
	ToolThink                   = "think"
	ToolResearchComplete        = "research_complete"
)

// now is replaced in tests to pin the date embedded in prompts.
var now = time.Now

// OutcomeKind classifies one planner reply.
type OutcomeKind int

const (
	// OutcomeAction is a dispatch or reflection to execute.
	OutcomeAction OutcomeKind = iota

	// OutcomeFinal ends the run.
	OutcomeFinal

	// OutcomeMalformed is a reply that named no valid action.
	OutcomeMalformed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAction:
		return "action"
	case OutcomeFinal:
		return "final"
	case OutcomeMalformed:
		return "malformed"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Action is a planner tool call.
type Action struct {
	Tool       string   `json:"tool"`
	Topic      string   `json:"research_topic,omitempty"`
	Topics     []string `json:"research_topics,omitempty"`
	Reflection string   `json:"reflection,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// Outcome is the parsed planner reply.
type Outcome struct {
	Kind   OutcomeKind
	Action Action

	// Err explains a malformed reply.
	Err error
}

// ParseOutcome reads a planner reply.
func ParseOutcome(reply string) Outcome {
	body := llm.ExtractJSON(reply)
	if body == "" {
		return Outcome{Kind: OutcomeMalformed, Err: fmt.Errorf("no JSON action found")}
	}
	var act Action
	if err := json.Unmarshal([]byte(body), &act); err != nil {
		return Outcome{Kind: OutcomeMalformed, Err: fmt.Errorf("parsing action: %w", err)}
	}

	switch act.Tool {
	case ToolConductResearch:
		act.Topic = strings.TrimSpace(act.Topic)
		if act.Topic == "" {
			return Outcome{Kind: OutcomeMalformed, Action: act, Err: fmt.Errorf("%s needs a research_topic", act.Tool)}
		}
	case ToolConductMultipleResearch:
		var topics []string
		for _, t := range act.Topics {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		if len(topics) == 0 {
			return Outcome{Kind: OutcomeMalformed, Action: act, Err: fmt.Errorf("%s needs at least one research_topics entry", act.Tool)}
		}
		act.Topics = topics
	case ToolThink:
	case ToolResearchComplete:
		return Outcome{Kind: OutcomeFinal, Action: act}
	default:
		return Outcome{Kind: OutcomeMalformed, Action: act, Err: fmt.Errorf("unknown tool %q", act.Tool)}
	}
	return Outcome{Kind: OutcomeAction, Action: act}
}

// Result is the outcome of a supervised research run.
type Result struct {
	// Notes holds the compressed findings in the order they were gathered.
	Notes []types.CompressedFinding

	// FinalThinking is the planner's closing summary, or its last
	// reflection when it gave none.
	FinalThinking string

	// Iterations counts planner replies, malformed ones included.
	Iterations int

	// Exhausted is true when MaxIterations ended the run.
	Exhausted bool
}

// Run plans and executes research for brief until the planner signals
// completion or MaxIterations replies have been consumed. Reaching the
// limit is not an error. Planner transport failures and failed fail-fast
// batches abort the run.
func (s *Supervisor) Run(ctx context.Context, brief types.ResearchBrief) (Result, error) {
	if strings.TrimSpace(brief.Text) == "" {
		return Result{}, fmt.Errorf("research brief is empty")
	}

	system := supervisorSystemPrompt(s.cfg)
	msgs := []llm.Message{{Role: types.RoleUser, Content: "Research brief:\n" + brief.Text}}
	var res Result

	for res.Iterations < s.cfg.MaxIterations {
		res.Iterations++
		logger := s.logger.With(zap.Int("iteration", res.Iterations))

		reply, err := s.completer.Complete(ctx, llm.Request{
			System:   system,
			Messages: append([]llm.Message(nil), msgs...),
			Model:    s.cfg.Model,
		})
		if err != nil {
			res.Notes = s.notes.Snapshot()
			return res, fmt.Errorf("planner iteration %d: %w", res.Iterations, err)
		}
		msgs = append(msgs, llm.Message{Role: types.RoleAssistant, Content: reply})

		out := ParseOutcome(reply)
		logger.Debug("planner outcome", zap.Stringer("outcome", out.Kind), zap.String("tool", out.Action.Tool))

		var feedback string
		switch out.Kind {
		case OutcomeMalformed:
			logger.Warn("malformed planner reply", zap.Error(out.Err))
			feedback = fmt.Sprintf("Error: %v. Reply with exactly one JSON action.", out.Err)

		case OutcomeFinal:
			if summary := strings.TrimSpace(out.Action.Summary); summary != "" {
				res.FinalThinking = summary
			}
			res.Notes = s.SignalComplete()
			return res, nil

		case OutcomeAction:
			switch out.Action.Tool {
			case ToolConductResearch:
				feedback = s.DispatchSingle(ctx, out.Action.Topic)
			case ToolConductMultipleResearch:
				text, err := s.DispatchBatch(ctx, out.Action.Topics)
				if err != nil {
					res.Notes = s.notes.Snapshot()
					return res, err
				}
				feedback = text
			case ToolThink:
				feedback = s.Reflect(out.Action.Reflection)
				res.FinalThinking = out.Action.Reflection
			}
		}
		msgs = append(msgs, llm.Message{Role: types.RoleUser, Content: feedback})
	}

	s.logger.Warn("planner iteration limit reached", zap.Int("iterations", res.Iterations))
	res.Exhausted = true
	res.Notes = s.SignalComplete()
	return res, nil
}

func supervisorSystemPrompt(cfg types.SupervisorConfig) string {
	return fmt.Sprintf(`You are a research supervisor coordinating research assistants. Today's date is %s.

<Task>
Break the research brief into topics, delegate them, and call research_complete once the findings cover the brief.
</Task>

<Tools>
Each reply is exactly one JSON object naming one action. The result comes back in the next message.

Delegate one topic to one assistant:
{"tool": "conduct_research", "research_topic": "<standalone instructions>"}

Delegate independent topics to assistants that run in parallel (at most %d topics):
{"tool": "conduct_multiple_research", "research_topics": ["<topic>", "<topic>"]}

Plan before delegating and reflect after results arrive:
{"tool": "think", "reflection": "<your notes>"}

Finish:
{"tool": "research_complete", "summary": "<what was covered>"}
</Tools>

<Strategy>
Use conduct_research for a single subject. Use conduct_multiple_research for comparisons ("A vs B vs C" becomes one topic per option) or for independent aspects of one subject. Give each topic at least two or three sentences of self-contained instructions; assistants cannot see each other's work or this conversation. Spell out acronyms.
</Strategy>

<Limits>
At most %d actions in total and at most %d topics per parallel call. Stop as soon as you have enough.
</Limits>`, now().Format("Mon Jan 2, 2006"), cfg.MaxBatchTopics, cfg.MaxIterations, cfg.MaxBatchTopics)
}
