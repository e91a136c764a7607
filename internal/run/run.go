// Package run executes the development workflow for one story: it holds the
// project run lock, journals the run in SQLite and keeps its artifacts
// under .devflow/runs/<run_id>.
package run

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/db"
	"github.com/metalagman/devflow/internal/reconcile"
	"github.com/metalagman/devflow/internal/shell"
	"github.com/metalagman/devflow/internal/tools"
	"github.com/metalagman/devflow/internal/workflows/devflow"
	"github.com/metalagman/devflow/internal/workspace"
	"github.com/rs/zerolog/log"
)

// DirName is the per-project devflow directory.
const DirName = ".devflow"

// Runner executes the development workflow for a project.
type Runner struct {
	repoRoot   string
	devflowDir string
	cfg        config.Config
	agents     map[string]config.AgentConfig
	store      *db.Store
	newModel   roles.ModelFunc

	buildStages func(context.Context, *roles.Factory) (devflow.Stages, error)
}

// Options customizes a Runner.
type Options struct {
	// NewModel overrides Gemini model creation.
	NewModel roles.ModelFunc
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	RunDir     string
	Status     string
	Iterations int
	Verdict    string
	State      devflow.State
}

// NewRunner constructs a Runner. agents maps role keys to resolved agent
// definitions.
func NewRunner(repoRoot string, cfg config.Config, agents map[string]config.AgentConfig, store *db.Store, opts Options) *Runner {
	return &Runner{
		repoRoot:    repoRoot,
		devflowDir:  filepath.Join(repoRoot, DirName),
		cfg:         cfg,
		agents:      agents,
		store:       store,
		newModel:    opts.NewModel,
		buildStages: devflow.BuildStages,
	}
}

type runInput struct {
	RunID         string                        `json:"run_id"`
	Story         string                        `json:"story"`
	Profile       string                        `json:"profile,omitempty"`
	MaxIterations int                           `json:"max_iterations"`
	CreatedAt     string                        `json:"created_at"`
	Agents        map[string]config.AgentConfig `json:"agents"`
}

// Run executes the pipeline for story.
func (r *Runner) Run(ctx context.Context, story string) (res Result, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		if res.RunID == "" {
			return
		}
		event := log.Info().
			Str("run_id", res.RunID).
			Str("status", res.Status).
			Int("iterations", res.Iterations).
			Dur("duration", time.Since(startedAt))
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("run finished")
	}()

	lock, err := AcquireLock(r.devflowDir)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = lock.Release() }()

	runsDir := filepath.Join(r.devflowDir, "runs")
	if _, err := reconcile.Run(ctx, r.store, runsDir); err != nil {
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}

	runID, err := newRunID()
	if err != nil {
		return Result{}, err
	}
	runDir := filepath.Join(runsDir, runID)
	res = Result{RunID: runID, RunDir: runDir, Status: db.StatusFailed}

	stepsDir := filepath.Join(runDir, "steps")
	if err := os.MkdirAll(stepsDir, 0o755); err != nil {
		return res, fmt.Errorf("create run steps: %w", err)
	}
	maxIterations := r.cfg.Budgets.MaxIterations
	if maxIterations <= 0 {
		maxIterations = devflow.DefaultMaxIterations
	}
	if err := writeJSON(filepath.Join(runDir, "input.json"), runInput{
		RunID:         runID,
		Story:         story,
		Profile:       r.cfg.Profile,
		MaxIterations: maxIterations,
		CreatedAt:     startedAt.Format(time.RFC3339),
		Agents:        r.agents,
	}); err != nil {
		return res, err
	}
	if err := r.store.CreateRun(ctx, runID, story, runDir); err != nil {
		return res, err
	}

	out, err := r.execute(ctx, runID, story, stepsDir, maxIterations)
	if err != nil {
		r.finish(ctx, runID, db.Outcome{Status: db.StatusFailed}, db.Event{Type: "run_failed", Message: err.Error()})
		return res, err
	}

	res.State = out.State
	res.Iterations = out.Iterations
	res.Verdict = out.State.ReviewStatus
	res.Status = db.StatusExhausted
	if out.Approved {
		res.Status = db.StatusApproved
	}
	if err := writeJSON(filepath.Join(runDir, "state.json"), out.State); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("write state.json")
	}
	r.finish(ctx, runID,
		db.Outcome{Status: res.Status, Iterations: res.Iterations, Verdict: res.Verdict},
		db.Event{Type: "run_finished", Message: fmt.Sprintf("%s after %d iteration(s)", res.Status, res.Iterations)},
	)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, runID, story, stepsDir string, maxIterations int) (devflow.Result, error) {
	root, err := workspace.New(r.repoRoot)
	if err != nil {
		return devflow.Result{}, fmt.Errorf("open workspace: %w", err)
	}
	env := &tools.Env{Root: root, Shell: shell.NewRunner(root.Dir(), r.cfg.Shell.Timeout)}
	factory := &roles.Factory{
		Agents:      r.agents,
		Registry:    tools.NewRegistry(env),
		ProjectRoot: root.Dir(),
		StepsDir:    stepsDir,
		NewModel:    r.newModel,
	}
	stages, err := r.buildStages(ctx, factory)
	if err != nil {
		return devflow.Result{}, err
	}
	pipeline, err := devflow.NewPipeline(stages, maxIterations)
	if err != nil {
		return devflow.Result{}, err
	}
	return devflow.Execute(ctx, devflow.ExecuteInput{
		Story:         story,
		Pipeline:      pipeline,
		MaxIterations: maxIterations,
		SessionID:     runID,
		OnEvent:       newJournal(ctx, r.store, runID).Record,
	})
}

func (r *Runner) finish(ctx context.Context, runID string, out db.Outcome, ev db.Event) {
	// The run context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := r.store.FinishRun(ctx, runID, out, ev); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("finish run journal")
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func newRunID() (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	ts := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("%s-%s", ts, hex.EncodeToString(suffix)), nil
}
