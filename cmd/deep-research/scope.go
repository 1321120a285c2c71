// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/pipeline"
	"github.com/pdiddy/deep-research/internal/scope"
)

var scopeCmd = &cobra.Command{
	Use:   "scope [query]",
	Short: "Clarify a query and print the research brief",
	Long: `Scope runs only the clarification dialogue and brief synthesis. Answer the
clarifying questions on the terminal; the resulting research brief is printed
to stdout and can be passed to "research --brief".`,
	RunE: runScope,
}

func runScope(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("a query is required")
	}
	cfg, err := loadConfig(cmd, false, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	completer, err := pipeline.NewCompleter(ctx, cfg.AI)
	if err != nil {
		return err
	}
	wf := scope.NewWorkflow(completer, scope.NewStdinResponder(os.Stdin, os.Stdout), cfg.Scope, logger)

	res, err := wf.Run(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", res.Verification)
	fmt.Fprintln(os.Stdout, res.Brief.Text)
	return nil
}

func init() {
	rootCmd.AddCommand(scopeCmd)
}
