// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrStructuredOutputInvalid is returned when a structured response cannot
// be decoded and validated even after the fixing passes.
var ErrStructuredOutputInvalid = errors.New("structured output invalid")

// DefaultFixingRetries is the number of repair passes when none is configured.
const DefaultFixingRetries = 2

// Schema describes the JSON object a structured request must produce.
type Schema struct {
	// Name labels the object in prompts and errors (e.g. "ClarificationDecision").
	Name string

	// Description says what the object represents.
	Description string

	// Example is a JSON example showing every field.
	Example string
}

// instructions renders the schema as a response-format block for the
// system prompt.
func (s Schema) instructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Respond with a single JSON object of type %s", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, " (%s)", s.Description)
	}
	b.WriteString(". Do not include any text outside the JSON object.\n\nExample:\n")
	b.WriteString(s.Example)
	return b.String()
}

// StructuredOptions configures CompleteStructured.
type StructuredOptions struct {
	Schema Schema

	// FixingRetries is the number of repair passes after the first malformed
	// response. Zero selects DefaultFixingRetries; negative disables fixing.
	FixingRetries int

	// FixingModel is used for repair passes; empty reuses the request model.
	FixingModel string
}

// fixingSystemPrompt instructs the repair pass.
const fixingSystemPrompt = `You repair malformed structured output. You will receive a response that was supposed to be a JSON object, the error found while parsing it, and the required format. Return only the corrected JSON object, preserving the original content wherever possible.`

// CompleteStructured sends req with the schema's format instructions and
// decodes the reply into T. validate may be nil; when set, a decoded value
// it rejects counts as malformed. A malformed reply triggers up to
// FixingRetries repair passes that feed the bad output and the schema to a
// secondary completion. Transport errors are returned as-is; exhausting the
// repair budget returns ErrStructuredOutputInvalid.
func CompleteStructured[T any](ctx context.Context, c Completer, req Request, opts StructuredOptions, validate func(T) error) (T, error) {
	var zero T

	retries := opts.FixingRetries
	if retries == 0 {
		retries = DefaultFixingRetries
	}
	if retries < 0 {
		retries = 0
	}

	first := req
	if first.System != "" {
		first.System += "\n\n"
	}
	first.System += opts.Schema.instructions()

	raw, err := c.Complete(ctx, first)
	if err != nil {
		return zero, fmt.Errorf("requesting %s: %w", opts.Schema.Name, err)
	}

	value, perr := decodeStructured(raw, validate)
	if perr == nil {
		return value, nil
	}

	for attempt := 1; attempt <= retries; attempt++ {
		fix := UserMessage(fixingSystemPrompt, fixingUserPrompt(opts.Schema, raw, perr)).
			withModel(req.Model).
			withModel(opts.FixingModel)

		raw, err = c.Complete(ctx, fix)
		if err != nil {
			return zero, fmt.Errorf("fixing %s (attempt %d): %w", opts.Schema.Name, attempt, err)
		}
		value, perr = decodeStructured(raw, validate)
		if perr == nil {
			return value, nil
		}
	}

	return zero, fmt.Errorf("%w: %s after %d fixing attempts: %v", ErrStructuredOutputInvalid, opts.Schema.Name, retries, perr)
}

func fixingUserPrompt(s Schema, raw string, perr error) string {
	var b strings.Builder
	b.WriteString("Malformed response:\n")
	b.WriteString(raw)
	b.WriteString("\n\nParsing error:\n")
	b.WriteString(perr.Error())
	b.WriteString("\n\nRequired format:\n")
	b.WriteString(s.instructions())
	return b.String()
}

// decodeStructured extracts and decodes the JSON object in raw.
func decodeStructured[T any](raw string, validate func(T) error) (T, error) {
	var value T
	body := ExtractJSON(raw)
	if body == "" {
		return value, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return value, fmt.Errorf("parsing JSON: %w", err)
	}
	if validate != nil {
		if err := validate(value); err != nil {
			return value, err
		}
	}
	return value, nil
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n?```")

// ExtractJSON returns the JSON object embedded in a model reply that may
// wrap it in a markdown code block or surround it with prose. It returns an
// empty string when no object is present.
func ExtractJSON(raw string) string {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) == 2 {
		raw = m[1]
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}
