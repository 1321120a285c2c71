// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/config"
	"github.com/pdiddy/deep-research/internal/metrics"
	"github.com/pdiddy/deep-research/internal/pipeline"
	"github.com/pdiddy/deep-research/internal/scope"
	"github.com/pdiddy/deep-research/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Run a full research session and print the report",
	Long: `Research clarifies the query with you on the terminal, writes a research
brief, delegates topics to parallel research workers, and prints the final
cited report as markdown.

Pass --brief to skip clarification and research a prepared brief directly.`,
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	briefText, _ := cmd.Flags().GetString("brief")
	briefText = strings.TrimSpace(briefText)
	if query == "" && briefText == "" {
		return errors.New("a research query or --brief is required")
	}
	outPath, _ := cmd.Flags().GetString("output")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := loadConfig(cmd, true, map[string]string{
		config.KeyMaxConcurrent:     "max-concurrent",
		config.KeyMaxIterations:     "max-iterations",
		config.KeyBatchFailure:      "batch-failure",
		config.KeySearchCache:       "cache",
		config.KeyResearchToolCalls: "max-tool-calls",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var m *metrics.Metrics
	if metricsAddr != "" {
		m = metrics.New()
		serveCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := m.Serve(serveCtx, metricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	completer, err := pipeline.NewCompleter(ctx, cfg.AI)
	if err != nil {
		return err
	}
	searcher, err := pipeline.NewSearcher(cfg.Search, m)
	if err != nil {
		return err
	}
	defer searcher.Close()

	p := pipeline.New(cfg, pipeline.Deps{
		Completer: completer,
		Searcher:  searcher,
		Responder: scope.NewStdinResponder(os.Stdin, os.Stdout),
		Metrics:   m,
		Logger:    logger,
	})

	var res pipeline.Result
	if briefText != "" {
		res, err = p.RunBrief(ctx, types.ResearchBrief{Text: briefText})
	} else {
		res, err = p.Run(ctx, query)
	}
	if err != nil {
		return err
	}

	if res.Scope.Verification != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", res.Scope.Verification)
	}
	if res.Research.Exhausted {
		fmt.Fprintf(os.Stderr, "Planner iteration limit reached after %d iterations; reporting on %d findings.\n",
			res.Research.Iterations, len(res.Research.Notes))
	}
	return writeReport(outPath, res.Report)
}

// writeReport writes the report to path, or to stdout when path is empty.
func writeReport(path, report string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, report)
		return err
	}
	if err := os.WriteFile(path, []byte(report+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	return nil
}

func init() {
	researchCmd.Flags().String("brief", "", "research this brief directly, skipping clarification")
	researchCmd.Flags().Int("max-concurrent", 0, "maximum research workers running at once (default 3)")
	researchCmd.Flags().Int("max-iterations", 0, "maximum supervisor planning iterations (default 6)")
	researchCmd.Flags().String("batch-failure", "", "parallel batch failure policy: fail-fast or isolate")
	researchCmd.Flags().Int("max-tool-calls", 0, "maximum search and think calls per worker (default 15)")
	researchCmd.Flags().Bool("cache", false, "share identical search results between workers")
	researchCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	researchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(researchCmd)
}
