package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

type testInvocationContext struct {
	context.Context
	sess  session.Session
	ended bool
}

func (c *testInvocationContext) Agent() agent.Agent          { return nil }
func (c *testInvocationContext) Artifacts() agent.Artifacts  { return nil }
func (c *testInvocationContext) Memory() agent.Memory        { return nil }
func (c *testInvocationContext) Session() session.Session    { return c.sess }
func (c *testInvocationContext) InvocationID() string        { return "inv-test" }
func (c *testInvocationContext) Branch() string              { return "" }
func (c *testInvocationContext) UserContent() *genai.Content { return nil }
func (c *testInvocationContext) RunConfig() *agent.RunConfig { return nil }
func (c *testInvocationContext) EndInvocation()              { c.ended = true }
func (c *testInvocationContext) Ended() bool                 { return c.ended }

func (c *testInvocationContext) WithContext(ctx context.Context) agent.InvocationContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

func newTestContext(t *testing.T, state map[string]any) *testInvocationContext {
	t.Helper()
	ctx := context.Background()
	created, err := session.InMemoryService().Create(ctx, &session.CreateRequest{
		AppName: "devflow",
		UserID:  "test-user",
		State:   state,
	})
	require.NoError(t, err)
	return &testInvocationContext{Context: ctx, sess: created.Session}
}

func newTestStage(t *testing.T, cfg StageConfig, output string, seen *stepRequest) *Stage {
	t.Helper()
	cfg.Agent = config.AgentConfig{Type: config.AgentTypeCodex}
	cfg.StepsDir = t.TempDir()
	s, err := newStage(cfg)
	require.NoError(t, err)
	s.invoke = func(_ context.Context, step stepRequest) ([]byte, error) {
		if seen != nil {
			*seen = step
		}
		return []byte(output), nil
	}
	return s
}

func collect(t *testing.T, s *Stage, ic agent.InvocationContext) []*session.Event {
	t.Helper()
	var events []*session.Event
	for ev, err := range s.Run(ic) {
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestStageWritesOutputKey(t *testing.T) {
	t.Parallel()

	var seen stepRequest
	s := newTestStage(t, StageConfig{
		Name:         "CodeImplementer",
		Instruction:  "Implement {tech_spec}. Feedback: {review_feedback}",
		StateKeys:    []string{"tech_spec", "review_feedback"},
		IterationKey: "refinement_iteration",
		OutputKey:    "implementation_summary",
	}, `{"summary":"added handler"}`, &seen)

	ic := newTestContext(t, map[string]any{
		"tech_spec":            "spec A",
		"review_feedback":      "fix X",
		"refinement_iteration": 2,
	})
	events := collect(t, s, ic)

	require.Len(t, events, 1)
	assert.Equal(t, "CodeImplementer", events[0].Author)
	assert.False(t, events[0].Actions.Escalate)
	assert.Equal(t, "added handler", events[0].Actions.StateDelta["implementation_summary"])

	got, err := ic.Session().State().Get("implementation_summary")
	require.NoError(t, err)
	assert.Equal(t, "added handler", got)

	assert.Contains(t, seen.Prompt, "Implement spec A. Feedback: fix X")
	assert.Contains(t, seen.Dir, "001-CodeImplementer")

	var in stageInput
	require.NoError(t, json.Unmarshal(seen.Input, &in))
	assert.Equal(t, 2, in.Iteration)
	assert.Equal(t, "spec A", in.State["tech_spec"])
}

func TestStageReviewApprovedEscalates(t *testing.T) {
	t.Parallel()

	s := newTestStage(t, StageConfig{
		Name:   "CodeReviewer",
		Review: true,
	}, `{"status":"APPROVED","review_feedback":"looks good"}`, nil)

	ic := newTestContext(t, map[string]any{})
	events := collect(t, s, ic)

	require.Len(t, events, 1)
	assert.True(t, events[0].Actions.Escalate)
	verdict, feedback := review.Stored(ic.Session().State())
	assert.Equal(t, review.Approved, verdict)
	assert.Equal(t, "looks good", feedback)
}

func TestStageReviewNeedsRevisionContinues(t *testing.T) {
	t.Parallel()

	s := newTestStage(t, StageConfig{
		Name:   "CodeReviewer",
		Review: true,
	}, `{"status":"NEEDS_REVISION","review_feedback":"fix X"}`, nil)

	ic := newTestContext(t, map[string]any{})
	events := collect(t, s, ic)

	require.Len(t, events, 1)
	assert.False(t, events[0].Actions.Escalate)
	verdict, _ := review.Stored(ic.Session().State())
	assert.Equal(t, review.NeedsRevision, verdict)
}

func TestStageReviewInvalidVerdictLeavesState(t *testing.T) {
	t.Parallel()

	s := newTestStage(t, StageConfig{
		Name:   "CodeReviewer",
		Review: true,
	}, `{"status":"","review_feedback":"fix X"}`, nil)

	ic := newTestContext(t, map[string]any{
		review.KeyStatus:   "NEEDS_REVISION",
		review.KeyFeedback: "previous",
	})
	events := collect(t, s, ic)

	require.Len(t, events, 1)
	assert.False(t, events[0].Actions.Escalate)
	verdict, feedback := review.Stored(ic.Session().State())
	assert.Equal(t, review.NeedsRevision, verdict)
	assert.Equal(t, "previous", feedback)
}

func TestStageMalformedOutputFails(t *testing.T) {
	t.Parallel()

	s := newTestStage(t, StageConfig{Name: "SpecWriter", OutputKey: "tech_spec"}, `not json`, nil)

	var gotErr error
	for _, err := range s.Run(newTestContext(t, nil)) {
		if err != nil {
			gotErr = err
		}
	}
	assert.Error(t, gotErr)
}

func TestResolveCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.AgentConfig
		want    []string
		wantErr bool
	}{
		{
			name: "codex with model",
			cfg:  config.AgentConfig{Type: config.AgentTypeCodex, Model: "gpt-5.2-codex"},
			want: []string{"codex", "exec", "--model", "gpt-5.2-codex", "--full-auto", "--skip-git-repo-check"},
		},
		{
			name: "gemini cli",
			cfg:  config.AgentConfig{Type: config.AgentTypeGeminiCLI},
			want: []string{"gemini", "--output-format", "text", "--approval-mode", "yolo"},
		},
		{
			name: "exec",
			cfg:  config.AgentConfig{Type: config.AgentTypeExec, Cmd: []string{"./agent.sh", "-v"}},
			want: []string{"./agent.sh", "-v"},
		},
		{name: "exec without cmd", cfg: config.AgentConfig{Type: config.AgentTypeExec}, wantErr: true},
		{name: "in-process gemini", cfg: config.AgentConfig{Type: config.AgentTypeGemini, Model: "m"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveCmd(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRenderInstruction(t *testing.T) {
	t.Parallel()

	got := renderInstruction("story: {story_prompt}; spec: {tech_spec}; other: {unknown}", map[string]string{
		"story_prompt": "add login",
		"tech_spec":    "",
	})
	assert.Equal(t, "story: add login; spec: ; other: {unknown}", got)
}
