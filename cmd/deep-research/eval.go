// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/config"
	"github.com/pdiddy/deep-research/internal/eval"
	"github.com/pdiddy/deep-research/internal/pipeline"
	"github.com/pdiddy/deep-research/internal/scope"
	"github.com/pdiddy/deep-research/pkg/types"
)

// errEvalFailed makes the process exit non-zero when the mean score is
// below the pass threshold.
var errEvalFailed = errors.New("evaluation failed")

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score generated research briefs against the evaluation dataset",
	Long: `Eval generates a research brief for every dataset case, answering any
clarifying question automatically, and asks a judge model whether each
expected point is covered. It prints a per-case table and exits non-zero
when the mean score is below the pass threshold (default 0.8).

The built-in dataset has five scoping cases; --dataset replaces it with a
YAML file of the same shape.`,
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false, map[string]string{
		config.KeyDatasetPath: "dataset",
		config.KeyPointDelay:  "point-delay",
		config.KeyCaseDelay:   "case-delay",
	})
	if err != nil {
		return err
	}

	var cases []types.EvaluationCase
	if cfg.Eval.DatasetPath != "" {
		cases, err = eval.LoadDataset(cfg.Eval.DatasetPath)
	} else {
		cases, err = eval.DefaultCases()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	completer, err := pipeline.NewCompleter(ctx, cfg.AI)
	if err != nil {
		return err
	}
	wf := scope.NewWorkflow(completer, scope.AutoResponder{Reply: cfg.Eval.AutoReply}, cfg.Scope, logger)
	h := eval.NewHarness(eval.WorkflowBriefs(wf), completer, cfg.Eval, logger)

	sum, err := h.Run(ctx, cases)
	if err != nil {
		return err
	}
	if err := eval.WriteSummary(os.Stdout, sum, cfg.Eval.PassThreshold); err != nil {
		return err
	}
	if !sum.Passed {
		return errEvalFailed
	}
	return nil
}

func init() {
	evalCmd.Flags().String("dataset", "", "YAML dataset replacing the built-in cases")
	evalCmd.Flags().Duration("point-delay", 0, "pause between judge calls (default 1s)")
	evalCmd.Flags().Duration("case-delay", 0, "pause between cases (default 2s)")

	rootCmd.AddCommand(evalCmd)
}
