// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scope turns a raw user query into a research brief. The
// Controller runs the clarification state machine, asking the user questions
// through a Responder until the model is satisfied; the BriefSynthesizer
// then rewrites the whole conversation as one detailed research question.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrClarificationExhausted is returned when the model still wants to ask a
// question after MaxTurns decisions.
var ErrClarificationExhausted = errors.New("clarification turn limit reached")

// DefaultMaxTurns bounds the decision rounds when none is configured.
const DefaultMaxTurns = 5

// State is a step of the clarification state machine.
type State int

const (
	StateStart State = iota
	StateDeciding
	StateAwaitingUser
	StateDone
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDeciding:
		return "deciding"
	case StateAwaitingUser:
		return "awaiting_user"
	case StateDone:
		return "done"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scope is the outcome of a clarification run.
type Scope struct {
	// Conversation is the full history, starting with the user's query.
	Conversation types.Conversation

	// Verification is the model's acknowledgement that research can start.
	Verification string

	// Turns counts the decisions made.
	Turns int
}

// Controller drives the clarification loop.
type Controller struct {
	completer llm.Completer
	responder Responder
	cfg       types.ScopeConfig
	logger    *zap.Logger
}

// NewController builds a controller. A nil logger discards logs.
func NewController(c llm.Completer, r Responder, cfg types.ScopeConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Controller{completer: c, responder: r, cfg: cfg, logger: logger}
}

// Clarify runs the state machine for query until the model has no more
// questions. The decision that would exceed MaxTurns is not put to the user;
// the run fails with ErrClarificationExhausted instead. The returned Scope
// holds the conversation so far even on error.
func (c *Controller) Clarify(ctx context.Context, query string) (Scope, error) {
	var (
		state    = StateStart
		sc       Scope
		decision types.ClarificationDecision
	)

	for {
		c.logger.Debug("clarification step", zap.Stringer("state", state), zap.Int("turn", sc.Turns))

		switch state {
		case StateStart:
			query = strings.TrimSpace(query)
			if query == "" {
				return sc, fmt.Errorf("research query is empty")
			}
			sc.Conversation = append(sc.Conversation, types.Turn{Role: types.RoleUser, Text: query})
			state = StateDeciding

		case StateDeciding:
			sc.Turns++
			d, err := c.decide(ctx, sc.Conversation)
			if err != nil {
				return sc, fmt.Errorf("clarification decision %d: %w", sc.Turns, err)
			}
			decision = d
			switch {
			case !decision.NeedsClarification:
				state = StateDone
			case sc.Turns >= c.cfg.MaxTurns:
				state = StateExhausted
			default:
				sc.Conversation = append(sc.Conversation, types.Turn{Role: types.RoleAssistant, Text: decision.Question})
				state = StateAwaitingUser
			}

		case StateAwaitingUser:
			reply, err := c.responder.Respond(ctx, decision.Question)
			if err != nil {
				return sc, fmt.Errorf("waiting for user reply: %w", err)
			}
			sc.Conversation = append(sc.Conversation, types.Turn{Role: types.RoleUser, Text: reply})
			state = StateDeciding

		case StateDone:
			sc.Verification = decision.Verification
			c.logger.Info("clarification complete", zap.Int("turns", sc.Turns))
			return sc, nil

		case StateExhausted:
			c.logger.Warn("clarification exhausted", zap.Int("turns", sc.Turns))
			return sc, fmt.Errorf("%w after %d decisions", ErrClarificationExhausted, sc.Turns)

		default:
			return sc, fmt.Errorf("unknown clarification state %v", state)
		}
	}
}

// decide asks the model whether another question is needed.
func (c *Controller) decide(ctx context.Context, conv types.Conversation) (types.ClarificationDecision, error) {
	prompt, err := renderPrompt(clarifyPromptTmpl, conv)
	if err != nil {
		return types.ClarificationDecision{}, err
	}
	req := llm.UserMessage("", prompt)
	req.Model = c.cfg.Model

	return llm.CompleteStructured(ctx, c.completer, req, llm.StructuredOptions{
		Schema:        decisionSchema,
		FixingRetries: c.cfg.FixingRetries,
		FixingModel:   c.cfg.FixingModel,
	}, types.ClarificationDecision.Validate)
}
