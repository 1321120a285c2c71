// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the completion service every pipeline stage talks to.
// Backends implement Completer; CompleteStructured layers JSON decoding and
// the fixing pass on top of any backend.
package llm

import (
	"context"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Completer issues a single completion request. Implementations must honour
// ctx cancellation and return transport failures as errors.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Message is one conversational message sent to the model.
type Message struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// Request is a provider-neutral completion request.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation; it must end with a user message.
	Messages []Message

	// Model overrides the backend's default model when set.
	Model string

	// MaxTokens overrides the backend's default response cap when positive.
	MaxTokens int
}

// UserMessage returns a request with a system prompt and one user message.
func UserMessage(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: types.RoleUser, Content: user}},
	}
}

// withModel returns a copy of req with Model set when model is non-empty.
func (r Request) withModel(model string) Request {
	if model != "" {
		r.Model = model
	}
	return r
}

// ensureUserTurn guarantees the conversation is non-empty and ends with a
// user message; providers reject anything else.
func ensureUserTurn(msgs []Message) []Message {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != types.RoleUser {
		return append(msgs, Message{Role: types.RoleUser, Content: "Continue."})
	}
	return msgs
}

// trimText joins text blocks and trims surrounding whitespace.
func trimText(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}
