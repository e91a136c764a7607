package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dbpkg "github.com/metalagman/devflow/internal/db"
)

func openStore(t *testing.T, devflowDir string) *dbpkg.Store {
	t.Helper()
	database, err := dbpkg.Open(filepath.Join(devflowDir, "devflow.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return dbpkg.NewStore(database)
}

func TestRunFailsStaleRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	devflowDir := filepath.Join(t.TempDir(), ".devflow")
	runsDir := filepath.Join(devflowDir, "runs")
	store := openStore(t, devflowDir)

	if err := store.CreateRun(ctx, "stale", "story", filepath.Join(runsDir, "stale")); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.CreateRun(ctx, "done", "story", filepath.Join(runsDir, "done")); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.FinishRun(ctx, "done", dbpkg.Outcome{Status: dbpkg.StatusApproved, Iterations: 1, Verdict: "APPROVED"}, dbpkg.Event{Type: "run_finished"}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	res, err := Run(ctx, store, runsDir)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}

	status, err := store.GetRunStatus(ctx, "stale")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != dbpkg.StatusFailed {
		t.Fatalf("stale status = %q, want %q", status, dbpkg.StatusFailed)
	}
	status, err = store.GetRunStatus(ctx, "done")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != dbpkg.StatusApproved {
		t.Fatalf("done status = %q, want %q", status, dbpkg.StatusApproved)
	}

	events, err := store.Events(ctx, "stale")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != "reconciled_run" || last.Message != staleMessage {
		t.Fatalf("last event = %+v", last)
	}

	// A second pass has nothing left to repair.
	res, err = Run(ctx, store, runsDir)
	if err != nil {
		t.Fatalf("reconcile second pass: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("second pass failed = %d, want 0", res.Failed)
	}
}

func TestRunReportsOrphanedRunDirs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	devflowDir := filepath.Join(t.TempDir(), ".devflow")
	runsDir := filepath.Join(devflowDir, "runs")
	orphan := filepath.Join(runsDir, "missing-run", "steps", "001-SpecWriter")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatalf("create run dir: %v", err)
	}
	store := openStore(t, devflowDir)

	res, err := Run(ctx, store, runsDir)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Orphaned) != 1 || res.Orphaned[0] != filepath.Join(runsDir, "missing-run") {
		t.Fatalf("orphaned = %v", res.Orphaned)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Fatalf("orphaned dir should be kept: %v", err)
	}
}

func TestRunWithoutRunsDir(t *testing.T) {
	t.Parallel()

	devflowDir := filepath.Join(t.TempDir(), ".devflow")
	store := openStore(t, devflowDir)

	res, err := Run(context.Background(), store, filepath.Join(devflowDir, "runs"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Failed != 0 || len(res.Orphaned) != 0 {
		t.Fatalf("result = %+v", res)
	}
}
