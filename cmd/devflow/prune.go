package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/metalagman/devflow/internal/run"
	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	var keepLast int
	var keepDays int
	var dryRun bool
	cmd := &cobra.Command{
		Use:          "prune",
		Short:        "Prune old runs from disk and the journal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := repoRoot()
			if err != nil {
				return err
			}
			policy := run.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				cfg, _, err := loadConfig(root)
				if err != nil {
					return err
				}
				policy = run.RetentionPolicy{KeepLast: cfg.Retention.KeepLast, KeepDays: cfg.Retention.KeepDays}
			}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return errors.New("set --keep-last or --keep-days (or configure retention in the config file)")
			}

			store, closeFn, err := openStore(root)
			if err != nil {
				return err
			}
			defer closeFn()

			devflowDir := filepath.Join(root, run.DirName)
			lock, ok, err := run.TryAcquireLock(devflowDir)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("a run is in progress; try again when it finishes")
			}
			defer func() { _ = lock.Release() }()

			res, err := run.PruneRuns(cmd.Context(), store, filepath.Join(devflowDir, "runs"), policy, dryRun)
			if err != nil {
				return err
			}
			mode := "deleted"
			if dryRun {
				mode = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d runs (kept %d, skipped %d)\n", mode, res.Deleted, res.Kept, res.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without deleting")
	return cmd
}
