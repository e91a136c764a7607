package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/db"
	"github.com/metalagman/devflow/internal/run"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var render bool
	var maxIterations int
	cmd := &cobra.Command{
		Use:          "run <story>",
		Short:        "Run the development workflow for a user story",
		Long:         "Write a tech spec for the story, implement and review it in a bounded loop, then branch, commit, push and open a pull request.",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			story := strings.TrimSpace(strings.Join(args, " "))
			if story == "" {
				return errors.New("story is required")
			}
			root, err := repoRoot()
			if err != nil {
				return err
			}
			cfg, agents, err := loadConfig(root)
			if err != nil {
				return err
			}
			if maxIterations > 0 {
				cfg.Budgets.MaxIterations = maxIterations
			}
			store, closeFn, err := openStore(root)
			if err != nil {
				return err
			}
			defer closeFn()

			runner := run.NewRunner(root, cfg, agents, store, run.Options{NewModel: roles.NewGeminiModel})
			res, err := runner.Run(cmd.Context(), story)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, render)
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "render the tech spec as markdown")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override budgets.max_iterations")
	return cmd
}

var (
	labelStyle    = lipgloss.NewStyle().Bold(true)
	approvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

func printResult(w io.Writer, res run.Result, render bool) error {
	status := warnStyle.Render(res.Status)
	if res.Status == db.StatusApproved {
		status = approvedStyle.Render(res.Status)
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Run:"), res.RunID)
	fmt.Fprintf(w, "%s %s after %d iteration(s)\n", labelStyle.Render("Status:"), status, res.Iterations)
	if res.State.ReviewFeedback != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Review:"), res.State.ReviewFeedback)
	}
	if res.State.FinalCommitSummary != "" {
		fmt.Fprintf(w, "%s\n%s\n", labelStyle.Render("Commit:"), res.State.FinalCommitSummary)
	}
	if !render || res.State.TechSpec == "" {
		return nil
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := md.Render(res.State.TechSpec)
	if err != nil {
		return fmt.Errorf("render tech spec: %w", err)
	}
	fmt.Fprint(w, out)
	return nil
}
