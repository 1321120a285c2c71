// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Provider identifies the completion backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Default model identifiers per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single external call, including retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds settings shared by every stage that calls a completion backend.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the completion backend (anthropic or gemini).
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the default model identifier. Stage configs may override it.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the completion provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts on rate-limited calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTokens caps the response length of a single completion (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// SearchConfig holds settings for the web search backend.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the search provider key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Depth is the default search depth: basic or advanced.
	Depth string `json:"depth" yaml:"depth"`

	// MaxResults is the default number of results per query, clamped to [1,10] (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// IncludeRawContent requests full page content alongside snippets.
	IncludeRawContent bool `json:"include_raw_content" yaml:"include_raw_content"`

	// Topic is the default topic filter: general or news.
	Topic string `json:"topic" yaml:"topic"`

	// Cache enables the in-memory response cache shared by parallel workers.
	Cache bool `json:"cache" yaml:"cache"`
}

// ScopeConfig holds settings for clarification and brief synthesis.
type ScopeConfig struct {
	// Model overrides AIConfig.Model for scoping calls.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// FixingModel is used for the repair pass on malformed structured output.
	FixingModel string `json:"fixing_model,omitempty" yaml:"fixing_model,omitempty"`

	// MaxTurns bounds the number of clarification decisions (default 5).
	MaxTurns int `json:"max_turns" yaml:"max_turns"`

	// FixingRetries is the number of repair passes for malformed output (default 2).
	FixingRetries int `json:"fixing_retries" yaml:"fixing_retries"`
}

// ResearchConfig holds settings for a single research worker.
type ResearchConfig struct {
	// Model overrides AIConfig.Model for the investigation loop.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// CompressionModel overrides AIConfig.Model for the compression call.
	CompressionModel string `json:"compression_model,omitempty" yaml:"compression_model,omitempty"`

	// MaxToolCalls bounds the investigation loop (default 15).
	MaxToolCalls int `json:"max_tool_calls" yaml:"max_tool_calls"`
}

// BatchFailurePolicy decides what a failed task does to its parallel batch.
type BatchFailurePolicy string

const (
	// BatchFailFast cancels the remaining tasks and fails the whole batch.
	BatchFailFast BatchFailurePolicy = "fail-fast"

	// BatchIsolate reports a failed task as error text and keeps the others.
	BatchIsolate BatchFailurePolicy = "isolate"
)

// SupervisorConfig holds the scheduling budgets of the research supervisor.
type SupervisorConfig struct {
	// Model overrides AIConfig.Model for the planning loop.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// MaxConcurrentResearchers caps the number of workers executing at once (default 3).
	MaxConcurrentResearchers int `json:"max_concurrent_researchers" yaml:"max_concurrent_researchers"`

	// MaxBatchTopics caps the topics accepted by one batch dispatch; extra
	// topics are dropped (default MaxConcurrentResearchers).
	MaxBatchTopics int `json:"max_batch_topics" yaml:"max_batch_topics"`

	// MaxIterations caps planner operations across the whole run (default 6).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// BatchFailure selects fail-fast or isolate semantics for batch dispatch.
	BatchFailure BatchFailurePolicy `json:"batch_failure" yaml:"batch_failure"`

	// TaskTimeout bounds one worker invocation (default 10m).
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"`
}

// ReportConfig holds settings for the final report synthesis.
type ReportConfig struct {
	// Model overrides AIConfig.Model for the report call.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// MaxTokens overrides AIConfig.MaxTokens for the report (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// EvalConfig holds settings for the scoping evaluation harness.
type EvalConfig struct {
	// JudgeModel overrides AIConfig.Model for judge calls.
	JudgeModel string `json:"judge_model,omitempty" yaml:"judge_model,omitempty"`

	// PointDelay is the pause between point judgements (default 1s).
	PointDelay time.Duration `json:"point_delay" yaml:"point_delay"`

	// CaseDelay is the pause between cases (default 2s).
	CaseDelay time.Duration `json:"case_delay" yaml:"case_delay"`

	// PassThreshold is the minimum mean score for the run to pass (default 0.8).
	PassThreshold float64 `json:"pass_threshold" yaml:"pass_threshold"`

	// AutoReply answers clarifying questions during unattended runs.
	AutoReply string `json:"auto_reply" yaml:"auto_reply"`

	// DatasetPath replaces the built-in dataset with a YAML file.
	DatasetPath string `json:"dataset_path,omitempty" yaml:"dataset_path,omitempty"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	AI         AIConfig         `json:"ai" yaml:"ai"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Scope      ScopeConfig      `json:"scope" yaml:"scope"`
	Research   ResearchConfig   `json:"research" yaml:"research"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
	Report     ReportConfig     `json:"report" yaml:"report"`
	Eval       EvalConfig       `json:"eval" yaml:"eval"`
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func (c *PipelineConfig) ApplyDefaults() {
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderAnthropic
	}
	if c.AI.Model == "" {
		switch c.AI.Provider {
		case ProviderGemini:
			c.AI.Model = DefaultGeminiModel
		default:
			c.AI.Model = DefaultAnthropicModel
		}
	}
	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 4096
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 5 * time.Minute
	}
	if c.AI.UserAgent == "" {
		c.AI.UserAgent = "deep-research/0.1"
	}

	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 60 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "deep-research/0.1"
	}
	if c.Search.Depth == "" {
		c.Search.Depth = "basic"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.Topic == "" {
		c.Search.Topic = "general"
	}

	if c.Scope.MaxTurns <= 0 {
		c.Scope.MaxTurns = 5
	}
	if c.Scope.FixingRetries <= 0 {
		c.Scope.FixingRetries = 2
	}

	if c.Research.MaxToolCalls <= 0 {
		c.Research.MaxToolCalls = 15
	}

	if c.Supervisor.MaxConcurrentResearchers <= 0 {
		c.Supervisor.MaxConcurrentResearchers = 3
	}
	if c.Supervisor.MaxBatchTopics <= 0 {
		c.Supervisor.MaxBatchTopics = c.Supervisor.MaxConcurrentResearchers
	}
	if c.Supervisor.MaxIterations <= 0 {
		c.Supervisor.MaxIterations = 6
	}
	if c.Supervisor.BatchFailure == "" {
		c.Supervisor.BatchFailure = BatchFailFast
	}
	if c.Supervisor.TaskTimeout <= 0 {
		c.Supervisor.TaskTimeout = 10 * time.Minute
	}

	if c.Report.MaxTokens <= 0 {
		c.Report.MaxTokens = 8192
	}

	if c.Eval.PointDelay == 0 {
		c.Eval.PointDelay = time.Second
	}
	if c.Eval.CaseDelay == 0 {
		c.Eval.CaseDelay = 2 * time.Second
	}
	if c.Eval.PassThreshold <= 0 {
		c.Eval.PassThreshold = 0.8
	}
	if c.Eval.AutoReply == "" {
		c.Eval.AutoReply = "I have no further details. Please proceed with the information already given."
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c PipelineConfig) Validate() error {
	switch c.AI.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown completion provider %q", c.AI.Provider)
	}
	switch c.Search.Depth {
	case "basic", "advanced":
	default:
		return fmt.Errorf("search depth must be basic or advanced, got %q", c.Search.Depth)
	}
	switch c.Search.Topic {
	case "general", "news":
	default:
		return fmt.Errorf("search topic must be general or news, got %q", c.Search.Topic)
	}
	switch c.Supervisor.BatchFailure {
	case BatchFailFast, BatchIsolate:
	default:
		return fmt.Errorf("batch failure policy must be %s or %s, got %q", BatchFailFast, BatchIsolate, c.Supervisor.BatchFailure)
	}
	if c.Eval.PassThreshold > 1 {
		return fmt.Errorf("pass threshold %v out of range (0,1]", c.Eval.PassThreshold)
	}
	return nil
}

// ModelOr returns model when set, otherwise fallback.
func ModelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
