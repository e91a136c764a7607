package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/devflow/internal/db"
	"github.com/spf13/cobra"
)

const storyColumnWidth = 48

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := openProjectStore()
			if err != nil {
				return err
			}
			defer closeFn()
			return listRuns(cmd.Context(), cmd.OutOrStdout(), store, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 shows all)")
	cmd.AddCommand(runsShowCmd())
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the event timeline of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openProjectStore()
			if err != nil {
				return err
			}
			defer closeFn()
			return showRun(cmd.Context(), cmd.OutOrStdout(), store, args[0])
		},
	}
}

func openProjectStore() (*db.Store, func(), error) {
	root, err := repoRoot()
	if err != nil {
		return nil, func() {}, err
	}
	return openStore(root)
}

func listRuns(ctx context.Context, w io.Writer, store *db.Store, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs yet")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			strconv.Itoa(r.Iterations),
			r.Verdict,
			truncate(r.Story, storyColumnWidth),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "CREATED", "STATUS", "ITER", "VERDICT", "STORY").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
	return nil
}

func showRun(ctx context.Context, w io.Writer, store *db.Store, runID string) error {
	events, err := store.Events(ctx, runID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("%w: %s", db.ErrRunNotFound, runID)
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			strconv.Itoa(ev.Seq),
			ev.TS.Local().Format("15:04:05"),
			ev.Type,
			truncate(ev.Message, 60),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SEQ", "TIME", "TYPE", "MESSAGE").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
