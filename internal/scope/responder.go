// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scope

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrNoReply is returned when a responder has no answer to give.
var ErrNoReply = errors.New("no reply available")

// Responder supplies the user's answer to a clarifying question. Respond is
// the only point where a scoping run waits on a human.
type Responder interface {
	Respond(ctx context.Context, question string) (string, error)
}

// StdinResponder prints the question and reads one line of reply.
type StdinResponder struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewStdinResponder reads replies from in and writes prompts to out.
func NewStdinResponder(in io.Reader, out io.Writer) *StdinResponder {
	return &StdinResponder{out: out, scanner: bufio.NewScanner(in)}
}

// Respond shows question and blocks until a line is read.
func (r *StdinResponder) Respond(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(r.out, "\nAssistant: %s\n\nYou: ", question)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading reply: %w", err)
		}
		return "", fmt.Errorf("reading reply: %w", ErrNoReply)
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// AutoResponder answers every question with the same reply. Unattended runs
// such as evaluation use it.
type AutoResponder struct {
	Reply string
}

// Respond returns the fixed reply.
func (r AutoResponder) Respond(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Reply, nil
}

// ScriptedResponder answers with pre-recorded replies in order and records
// the questions it was asked.
type ScriptedResponder struct {
	mu        sync.Mutex
	replies   []string
	questions []string
}

// NewScriptedResponder returns a responder that gives replies in order.
func NewScriptedResponder(replies ...string) *ScriptedResponder {
	return &ScriptedResponder{replies: replies}
}

// Respond pops the next reply; it fails with ErrNoReply when none are left.
func (r *ScriptedResponder) Respond(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, question)
	if len(r.replies) == 0 {
		return "", ErrNoReply
	}
	reply := r.replies[0]
	r.replies = r.replies[1:]
	return reply, nil
}

// Questions returns the questions asked so far.
func (r *ScriptedResponder) Questions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.questions...)
}
