package run

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/db"
	"github.com/metalagman/devflow/internal/review"
	"github.com/metalagman/devflow/internal/workflows/devflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

func stageAgent(t *testing.T, name string, emit func(*session.Event)) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name:        name,
		Description: "test stage",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
			return func(yield func(*session.Event, error) bool) {
				ev := session.NewEvent(ctx.InvocationID())
				ev.Author = name
				ev.Actions.StateDelta = map[string]any{}
				emit(ev)
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)
	return ag
}

func fakeStages(t *testing.T, approveOn int) func(context.Context, *roles.Factory) (devflow.Stages, error) {
	t.Helper()
	reviews := 0
	return func(_ context.Context, f *roles.Factory) (devflow.Stages, error) {
		require.NotEmpty(t, f.StepsDir)
		return devflow.Stages{
			SpecWriter: stageAgent(t, roles.SpecWriter.Name, func(ev *session.Event) {
				ev.Content = genai.NewContentFromText("spec body", genai.RoleModel)
				ev.Actions.StateDelta[roles.KeyTechSpec] = "spec body"
			}),
			Reviewer: stageAgent(t, roles.Reviewer.Name, func(ev *session.Event) {
				reviews++
				if reviews == approveOn {
					ev.Actions.StateDelta[review.KeyStatus] = string(review.Approved)
					ev.Actions.StateDelta[review.KeyFeedback] = "looks good"
					ev.Actions.Escalate = true
					return
				}
				ev.Actions.StateDelta[review.KeyStatus] = string(review.NeedsRevision)
				ev.Actions.StateDelta[review.KeyFeedback] = "add tests"
			}),
			Implementer: stageAgent(t, roles.Implementer.Name, func(ev *session.Event) {
				ev.Actions.StateDelta[roles.KeyImplementationSummary] = "implemented"
			}),
			Committer: stageAgent(t, roles.Committer.Name, func(ev *session.Event) {
				ev.Actions.StateDelta[roles.KeyFinalCommitSummary] = "pushed feat/login"
			}),
		}, nil
	}
}

func newTestRunner(t *testing.T, maxIterations int) (*Runner, *db.Store, string) {
	t.Helper()
	repoRoot := t.TempDir()
	cfg := config.Default()
	cfg.Budgets.MaxIterations = maxIterations
	_, agents, err := cfg.ResolveAgents("")
	require.NoError(t, err)
	store := openStore(t, filepath.Join(repoRoot, DirName))
	return NewRunner(repoRoot, cfg, agents, store, Options{}), store, repoRoot
}

func TestRunApproved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, store, _ := newTestRunner(t, 3)
	r.buildStages = fakeStages(t, 2)

	res, err := r.Run(ctx, "add login")
	require.NoError(t, err)
	assert.Equal(t, db.StatusApproved, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, string(review.Approved), res.Verdict)
	assert.Equal(t, "pushed feat/login", res.State.FinalCommitSummary)

	var st devflow.State
	data, err := os.ReadFile(filepath.Join(res.RunDir, "state.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "add login", st.StoryPrompt)
	assert.Equal(t, "spec body", st.TechSpec)

	var in runInput
	data, err = os.ReadFile(filepath.Join(res.RunDir, "input.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &in))
	assert.Equal(t, res.RunID, in.RunID)
	assert.Equal(t, 3, in.MaxIterations)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.StatusApproved, runs[0].Status)
	assert.Equal(t, 2, runs[0].Iterations)

	events, err := store.Events(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "run_started", events[0].Type)
	assert.Equal(t, "run_finished", events[len(events)-1].Type)

	authors := map[string]bool{}
	var stops []eventData
	for _, ev := range events {
		if ev.Type != "adk_event" {
			continue
		}
		var data eventData
		require.NoError(t, json.Unmarshal([]byte(ev.DataJSON), &data))
		authors[data.Author] = true
		if data.ReviewControl != "" {
			stops = append(stops, data)
		}
	}
	for _, name := range []string{roles.SpecWriter.Name, roles.Reviewer.Name, roles.Implementer.Name, roles.Committer.Name} {
		assert.True(t, authors[name], "journaled events from %s", name)
	}
	require.Len(t, stops, 1, "approval is journaled once")
	assert.Equal(t, "stop", stops[0].ReviewControl)
	assert.Equal(t, "CodeRefinementLoop", stops[0].Author)
}

func TestRunExhausted(t *testing.T) {
	t.Parallel()

	r, store, _ := newTestRunner(t, 2)
	r.buildStages = fakeStages(t, 0)

	res, err := r.Run(context.Background(), "add login")
	require.NoError(t, err)
	assert.Equal(t, db.StatusExhausted, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, string(review.NeedsRevision), res.Verdict)
	assert.Equal(t, "pushed feat/login", res.State.FinalCommitSummary)

	status, err := store.GetRunStatus(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusExhausted, status)
}

func TestRunFailedStageBuild(t *testing.T) {
	t.Parallel()

	r, store, _ := newTestRunner(t, 2)
	r.buildStages = func(context.Context, *roles.Factory) (devflow.Stages, error) {
		return devflow.Stages{}, errors.New("no api key")
	}

	res, err := r.Run(context.Background(), "add login")
	require.ErrorContains(t, err, "no api key")
	require.NotEmpty(t, res.RunID)

	status, err := store.GetRunStatus(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, status)
}

func TestRunReconcilesStaleRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, store, repoRoot := newTestRunner(t, 1)
	r.buildStages = fakeStages(t, 1)
	require.NoError(t, store.CreateRun(ctx, "crashed", "story", filepath.Join(repoRoot, DirName, "runs", "crashed")))

	_, err := r.Run(ctx, "add login")
	require.NoError(t, err)

	status, err := store.GetRunStatus(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, status)
}
