// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deep-research CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/deep-research/internal/config"
	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// settings is the viper instance commands bind their flags to.
	settings *viper.Viper

	logger = zap.NewNop()
)

// rootCmd is the base command for the deep-research CLI.
var rootCmd = &cobra.Command{
	Use:   "deep-research",
	Short: "Clarify, research, and report on open-ended questions",
	Long: `deep-research turns an open-ended question into a cited research report.
It first clarifies the scope with you, then a supervisor delegates focused
topics to parallel research workers that search the web, and finally the
findings are synthesized into a markdown report with numbered sources.

API keys are read from files under .secrets/ (anthropic-api-key,
gemini-api-key, tavily-api-key), from DEEP_RESEARCH_* environment variables,
or from the config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}

		cfgFile, _ := cmd.Flags().GetString("config")
		v, used, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		if used != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", used)
		}
		settings = v
		return settings.BindPFlag(config.KeyProvider, cmd.Flags().Lookup("provider"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./deep-research.yaml or ~/.config/deep-research/deep-research.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().String("provider", "", "completion provider: anthropic or gemini")
}

// newLogger logs JSON at warn level, or human-readable debug output when
// verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

// loadConfig binds the command's flags, reads the pipeline configuration,
// and resolves API keys. bindings maps setting keys to flag names.
func loadConfig(cmd *cobra.Command, needSearch bool, bindings map[string]string) (types.PipelineConfig, error) {
	for key, flag := range bindings {
		if err := settings.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return types.PipelineConfig{}, fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	cfg, err := config.Load(settings)
	if err != nil {
		return cfg, err
	}
	if err := config.ResolveSecrets(&cfg, loadedSecrets, needSearch); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
