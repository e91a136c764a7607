package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/metalagman/devflow/internal/db"
	"github.com/rs/zerolog/log"
)

// RetentionPolicy controls run cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
	Skipped    int
}

// PruneRuns deletes journal records and directories of runs outside the
// policy. Running runs are always kept. A run is kept when either rule
// keeps it.
func PruneRuns(ctx context.Context, store *db.Store, runsDir string, policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return PruneResult{}, err
	}

	res := PruneResult{Considered: len(runs)}
	for idx, r := range runs {
		keep := r.Status == db.StatusRunning
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 && (r.CreatedAt.IsZero() || r.CreatedAt.After(cutoff)) {
			keep = true
		}
		if keep {
			res.Kept++
			continue
		}
		if dryRun {
			res.Deleted++
			continue
		}
		targetDir := r.RunDir
		if targetDir == "" {
			targetDir = filepath.Join(runsDir, r.ID)
		}
		if err := os.RemoveAll(targetDir); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("run_id", r.ID).Msg("skip prune: remove run dir")
			res.Skipped++
			continue
		}
		if err := store.DeleteRun(ctx, r.ID); err != nil {
			return res, fmt.Errorf("prune: %w", err)
		}
		res.Deleted++
	}
	return res, nil
}
