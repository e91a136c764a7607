// Package reconcile repairs the run journal after an interrupted run.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/devflow/internal/db"
	"github.com/rs/zerolog/log"
)

const staleMessage = "Run was still marked running without a holder of the run lock; marked failed during recovery"

// Result counts what a reconciliation pass changed.
type Result struct {
	Failed   int
	Orphaned []string
}

// Run must be called while holding the run lock. Any run still marked
// running belongs to a process that died, so it is finished as failed.
// Run directories without a journal record are reported, not removed.
func Run(ctx context.Context, store *db.Store, runsDir string) (Result, error) {
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return Result{}, fmt.Errorf("list runs: %w", err)
	}

	var res Result
	known := make(map[string]struct{}, len(runs))
	for _, r := range runs {
		known[r.ID] = struct{}{}
		if r.Status != db.StatusRunning {
			continue
		}
		out := db.Outcome{Status: db.StatusFailed, Iterations: r.Iterations, Verdict: r.Verdict}
		ev := db.Event{Type: "reconciled_run", Message: staleMessage}
		if err := store.FinishRun(ctx, r.ID, out, ev); err != nil {
			return res, fmt.Errorf("fail stale run %s: %w", r.ID, err)
		}
		log.Warn().Str("run_id", r.ID).Msg("stale run marked failed")
		res.Failed++
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("read runs dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		res.Orphaned = append(res.Orphaned, filepath.Join(runsDir, entry.Name()))
	}
	return res, nil
}
