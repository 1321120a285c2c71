// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResearchTask is one delegated investigation. The topic must be
// self-contained: workers share no context with each other.
type ResearchTask struct {
	// ID correlates log lines for one worker invocation.
	ID string `json:"id" yaml:"id"`

	// Topic is the standalone research instruction.
	Topic string `json:"topic" yaml:"topic"`
}

// Source is a cited web page.
type Source struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// RawFinding is the output of a single search call made by a worker.
type RawFinding struct {
	Query      string `json:"query" yaml:"query"`
	ResultText string `json:"result_text" yaml:"result_text"`

	// Sources lists the pages returned by the search, in result order.
	// Empty when the search failed.
	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// CompressedFinding is the citation-preserving synthesis of one task's raw
// findings.
type CompressedFinding struct {
	TaskID string `json:"task_id" yaml:"task_id"`
	Topic  string `json:"topic" yaml:"topic"`
	Text   string `json:"text" yaml:"text"`

	// Fallback is true when compression failed and Text holds the
	// uncompressed investigation answer.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}
