// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles the pipeline configuration from a YAML config
// file, DEEP_RESEARCH_* environment variables, and bound command flags, in
// ascending order of precedence, and resolves API keys from .secrets/.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	// EnvPrefix prefixes environment overrides: ai.model is DEEP_RESEARCH_AI_MODEL.
	EnvPrefix = "DEEP_RESEARCH"

	fileName = "deep-research"
)

// Keys of settings that command flags bind to.
const (
	KeyProvider          = "ai.provider"
	KeyModel             = "ai.model"
	KeyMaxConcurrent     = "supervisor.max_concurrent_researchers"
	KeyMaxBatchTopics    = "supervisor.max_batch_topics"
	KeyMaxIterations     = "supervisor.max_iterations"
	KeyBatchFailure      = "supervisor.batch_failure"
	KeyPointDelay        = "eval.point_delay"
	KeyCaseDelay         = "eval.case_delay"
	KeyDatasetPath       = "eval.dataset_path"
	KeySearchCache       = "search.cache"
	KeySearchMaxResults  = "search.max_results"
	KeyResearchToolCalls = "research.max_tool_calls"
)

// New returns a viper instance reading cfgFile, or deep-research.yaml from
// the working directory or ~/.config/deep-research/ when cfgFile is empty.
// A missing default config file is not an error; a missing explicit one is.
// The second result names the file used, if any.
func New(cfgFile string) (*viper.Viper, string, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", fileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return v, "", nil
		}
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return v, v.ConfigFileUsed(), nil
}

// Load reads every pipeline setting from v, applies defaults, and validates
// the result.
func Load(v *viper.Viper) (types.PipelineConfig, error) {
	var c types.PipelineConfig

	c.AI.Provider = types.Provider(strings.ToLower(v.GetString(KeyProvider)))
	c.AI.Model = v.GetString(KeyModel)
	c.AI.APIKey = v.GetString("ai.api_key")
	c.AI.MaxRetries = v.GetInt("ai.max_retries")
	c.AI.MaxTokens = v.GetInt("ai.max_tokens")
	c.AI.Timeout = v.GetDuration("ai.timeout")
	c.AI.UserAgent = v.GetString("ai.user_agent")

	c.Search.APIKey = v.GetString("search.api_key")
	c.Search.Depth = strings.ToLower(v.GetString("search.depth"))
	c.Search.MaxResults = v.GetInt(KeySearchMaxResults)
	c.Search.IncludeRawContent = v.GetBool("search.include_raw_content")
	c.Search.Topic = strings.ToLower(v.GetString("search.topic"))
	c.Search.Cache = v.GetBool(KeySearchCache)
	c.Search.Timeout = v.GetDuration("search.timeout")
	c.Search.UserAgent = v.GetString("search.user_agent")

	c.Scope.Model = v.GetString("scope.model")
	c.Scope.FixingModel = v.GetString("scope.fixing_model")
	c.Scope.MaxTurns = v.GetInt("scope.max_turns")
	c.Scope.FixingRetries = v.GetInt("scope.fixing_retries")

	c.Research.Model = v.GetString("research.model")
	c.Research.CompressionModel = v.GetString("research.compression_model")
	c.Research.MaxToolCalls = v.GetInt(KeyResearchToolCalls)

	c.Supervisor.Model = v.GetString("supervisor.model")
	c.Supervisor.MaxConcurrentResearchers = v.GetInt(KeyMaxConcurrent)
	c.Supervisor.MaxBatchTopics = v.GetInt(KeyMaxBatchTopics)
	c.Supervisor.MaxIterations = v.GetInt(KeyMaxIterations)
	c.Supervisor.BatchFailure = types.BatchFailurePolicy(strings.ToLower(v.GetString(KeyBatchFailure)))
	c.Supervisor.TaskTimeout = v.GetDuration("supervisor.task_timeout")

	c.Report.Model = v.GetString("report.model")
	c.Report.MaxTokens = v.GetInt("report.max_tokens")

	c.Eval.JudgeModel = v.GetString("eval.judge_model")
	c.Eval.PointDelay = v.GetDuration(KeyPointDelay)
	c.Eval.CaseDelay = v.GetDuration(KeyCaseDelay)
	c.Eval.PassThreshold = v.GetFloat64("eval.pass_threshold")
	c.Eval.AutoReply = v.GetString("eval.auto_reply")
	c.Eval.DatasetPath = v.GetString(KeyDatasetPath)

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// CompletionKeyName returns the secrets file that holds the key for provider.
func CompletionKeyName(p types.Provider) string {
	if p == types.ProviderGemini {
		return secrets.GeminiAPIKey
	}
	return secrets.AnthropicAPIKey
}

// ResolveSecrets fills API keys the config left empty from loaded secrets.
// Keys set in config or environment win. needSearch is false for commands
// that never search, such as scope and eval. A key that is still missing
// fails with secrets.ErrMissing.
func ResolveSecrets(c *types.PipelineConfig, loaded map[string]string, needSearch bool) error {
	keyName := CompletionKeyName(c.AI.Provider)
	if c.AI.APIKey == "" {
		c.AI.APIKey = loaded[keyName]
	}
	have := map[string]string{keyName: c.AI.APIKey}
	required := []string{keyName}

	if needSearch {
		if c.Search.APIKey == "" {
			c.Search.APIKey = loaded[secrets.TavilyAPIKey]
		}
		have[secrets.TavilyAPIKey] = c.Search.APIKey
		required = append(required, secrets.TavilyAPIKey)
	}
	return secrets.Require(have, required...)
}
