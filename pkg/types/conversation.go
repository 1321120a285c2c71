// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research pipeline:
// conversation turns and clarification decisions for scoping, research tasks
// and findings for the supervised research phase, and evaluation records.
package types

import (
	"fmt"
	"strings"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the scoping conversation.
type Turn struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// Conversation is the ordered, append-only turn history of a scoping run.
type Conversation []Turn

// Format renders the conversation as "User: ..." / "Assistant: ..." lines,
// the layout the scoping prompts expect.
func (c Conversation) Format() string {
	var b strings.Builder
	for i, t := range c {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// ClarificationDecision is the structured answer to "do we need to ask the
// user anything else before researching?".
type ClarificationDecision struct {
	// NeedsClarification reports whether a question must be put to the user.
	NeedsClarification bool `json:"need_clarification" yaml:"need_clarification"`

	// Question is the clarifying question. Empty when NeedsClarification is false.
	Question string `json:"question" yaml:"question"`

	// Verification acknowledges the request before research starts. Empty
	// when NeedsClarification is true.
	Verification string `json:"verification" yaml:"verification"`
}

// Validate checks that exactly one of Question and Verification is set,
// matching NeedsClarification.
func (d ClarificationDecision) Validate() error {
	q := strings.TrimSpace(d.Question)
	v := strings.TrimSpace(d.Verification)
	if d.NeedsClarification {
		if q == "" {
			return fmt.Errorf("need_clarification is true but question is empty")
		}
		if v != "" {
			return fmt.Errorf("need_clarification is true but verification is set")
		}
		return nil
	}
	if v == "" {
		return fmt.Errorf("need_clarification is false but verification is empty")
	}
	if q != "" {
		return fmt.Errorf("need_clarification is false but question is set")
	}
	return nil
}

// ResearchBrief is the detailed research question that guides every
// sub-investigation. It is not modified after the brief synthesizer returns it.
type ResearchBrief struct {
	Text string `json:"research_brief" yaml:"research_brief"`
}
