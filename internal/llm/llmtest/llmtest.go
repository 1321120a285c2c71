// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmtest provides a scripted llm.Completer for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/pdiddy/deep-research/internal/llm"
)

// ErrExhausted is returned once a script has no replies left.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply is one scripted completion outcome.
type Reply struct {
	Text string
	Err  error
}

// Text returns a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail returns a failing reply.
func Fail(err error) Reply { return Reply{Err: err} }

// Script replays replies in order and records every request. It is safe for
// concurrent use.
type Script struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// New returns a script that answers with replies in order.
func New(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Complete pops the next reply.
func (s *Script) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", ErrExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Calls returns the number of requests received.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the recorded requests.
func (s *Script) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Remaining returns the number of unused replies.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
