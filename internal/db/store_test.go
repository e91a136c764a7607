package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "journal", "devflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateRun(ctx, "run-1", "add login", "/tmp/run-1"))
	status, err := s.GetRunStatus(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, s.AppendEvent(ctx, "run-1", Event{Type: "adk_event", Message: "SpecWriter", DataJSON: `{"author":"SpecWriter"}`}))
	require.NoError(t, s.FinishRun(ctx, "run-1",
		Outcome{Status: StatusApproved, Iterations: 2, Verdict: "APPROVED"},
		Event{Type: "run_finished", Message: "approved"},
	))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "add login", runs[0].Story)
	assert.Equal(t, StatusApproved, runs[0].Status)
	assert.Equal(t, 2, runs[0].Iterations)
	assert.Equal(t, "APPROVED", runs[0].Verdict)
	assert.False(t, runs[0].EndedAt.IsZero())

	events, err := s.Events(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{events[0].Seq, events[1].Seq, events[2].Seq})
	assert.Equal(t, "run_started", events[0].Type)
	assert.Equal(t, `{"author":"SpecWriter"}`, events[1].DataJSON)
	assert.Equal(t, "run_finished", events[2].Type)
}

func TestFinishUnknownRun(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.FinishRun(context.Background(), "missing", Outcome{Status: StatusFailed}, Event{Type: "run_finished"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDeleteRunCascadesEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateRun(ctx, "run-1", "story", "/tmp/run-1"))
	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	events, err := s.Events(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, events)
	status, err := s.GetRunStatus(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestListRunsLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRun(ctx, id, "story", "/tmp/"+id))
	}
	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
