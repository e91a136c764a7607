package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/metalagman/ainvoke/adk"
	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/logging"
	"github.com/metalagman/devflow/internal/review"
	"github.com/rs/zerolog/log"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const execUserID = "devflow-exec"

// StageConfig describes one workflow stage backed by an external agent.
type StageConfig struct {
	Name         string
	Description  string
	Instruction  string
	Agent        config.AgentConfig
	ProjectRoot  string
	StepsDir     string
	StateKeys    []string
	IterationKey string
	OutputKey    string
	// Review applies the output verdict through the review gate and
	// escalates on approval.
	Review bool
}

type invokeFunc func(ctx context.Context, step stepRequest) ([]byte, error)

type stepRequest struct {
	Dir    string
	Prompt string
	Input  []byte
}

// Stage is an ADK agent that runs an external CLI agent once per invocation
// and maps its JSON output into session state.
type Stage struct {
	cfg    StageConfig
	cmd    []string
	steps  atomic.Int64
	invoke invokeFunc
}

// NewStage builds the ADK agent for cfg.
func NewStage(cfg StageConfig) (agent.Agent, error) {
	s, err := newStage(cfg)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         s.Run,
	})
}

func newStage(cfg StageConfig) (*Stage, error) {
	if cfg.Name == "" {
		return nil, errors.New("stage name is required")
	}
	if cfg.StepsDir == "" {
		return nil, fmt.Errorf("stage %s: steps dir is required", cfg.Name)
	}
	cmd, err := ResolveCmd(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", cfg.Name, err)
	}
	s := &Stage{cfg: cfg, cmd: cmd}
	s.invoke = s.invokeExec
	return s, nil
}

type stageInput struct {
	Role        string            `json:"role"`
	ProjectRoot string            `json:"project_root"`
	Iteration   int               `json:"iteration,omitempty"`
	State       map[string]string `json:"state"`
}

type stageOutput struct {
	Summary        string `json:"summary"`
	Status         string `json:"status,omitempty"`
	ReviewFeedback string `json:"review_feedback,omitempty"`
}

// Run executes the stage.
func (s *Stage) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		st := ctx.Session().State()
		in := s.input(st)

		inputJSON, err := json.MarshalIndent(in, "", "  ")
		if err != nil {
			yield(nil, fmt.Errorf("marshal %s input: %w", s.cfg.Name, err))
			return
		}

		index := s.steps.Add(1)
		stepDir := filepath.Join(s.cfg.StepsDir, fmt.Sprintf("%03d-%s", index, s.cfg.Name))
		l := log.With().Str("role", s.cfg.Name).Int("iteration", in.Iteration).Str("step_dir", stepDir).Logger()
		l.Info().Strs("cmd", s.cmd).Msg("running exec stage")

		raw, err := s.invoke(ctx, stepRequest{
			Dir:    stepDir,
			Prompt: renderInstruction(s.cfg.Instruction, in.State) + outputContract(s.cfg.Review),
			Input:  inputJSON,
		})
		if err != nil {
			yield(nil, fmt.Errorf("run %s: %w", s.cfg.Name, err))
			return
		}

		var out stageOutput
		if err := json.Unmarshal(raw, &out); err != nil {
			yield(nil, fmt.Errorf("parse %s output: %w", s.cfg.Name, err))
			return
		}

		ev := session.NewEvent(ctx.InvocationID())
		ev.Author = s.cfg.Name
		ev.Actions.StateDelta = map[string]any{}
		text := out.Summary

		if s.cfg.Review {
			d, err := review.Record(st, out.Status, out.ReviewFeedback)
			if err != nil {
				l.Warn().Err(err).Str("status", out.Status).Msg("review verdict rejected")
				text = fmt.Sprintf("Review verdict rejected: %v", err)
			} else {
				ev.Actions.StateDelta[review.KeyStatus] = string(d.Verdict)
				ev.Actions.StateDelta[review.KeyFeedback] = d.Feedback
				ev.Actions.Escalate = d.Control == review.Stop
				if text == "" {
					text = fmt.Sprintf("%s: %s", d.Verdict, d.Feedback)
				}
				l.Info().Str("status", string(d.Verdict)).Msg("review recorded")
			}
		}

		if s.cfg.OutputKey != "" {
			if err := st.Set(s.cfg.OutputKey, out.Summary); err != nil {
				yield(nil, fmt.Errorf("set %s: %w", s.cfg.OutputKey, err))
				return
			}
			ev.Actions.StateDelta[s.cfg.OutputKey] = out.Summary
		}

		ev.Content = genai.NewContentFromText(text, genai.RoleModel)
		yield(ev, nil)
	}
}

func (s *Stage) input(st session.State) stageInput {
	in := stageInput{
		Role:        s.cfg.Name,
		ProjectRoot: s.cfg.ProjectRoot,
		State:       make(map[string]string, len(s.cfg.StateKeys)),
	}
	for _, key := range s.cfg.StateKeys {
		v, err := st.Get(key)
		if err != nil {
			in.State[key] = ""
			continue
		}
		str, _ := v.(string)
		in.State[key] = str
	}
	if s.cfg.IterationKey != "" {
		if v, err := st.Get(s.cfg.IterationKey); err == nil {
			if n, ok := v.(int); ok {
				in.Iteration = n
			}
		}
	}
	return in
}

func (s *Stage) invokeExec(ctx context.Context, step stepRequest) ([]byte, error) {
	if err := os.MkdirAll(filepath.Join(step.Dir, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("create step dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(step.Dir, "logs", "prompt.txt"), []byte(step.Prompt), 0o644); err != nil {
		log.Warn().Err(err).Str("dir", step.Dir).Msg("failed to save prompt log")
	}
	if err := os.WriteFile(filepath.Join(step.Dir, "input.json"), step.Input, 0o644); err != nil {
		return nil, fmt.Errorf("write input.json: %w", err)
	}

	stdoutFile, err := os.Create(filepath.Join(step.Dir, "logs", "stdout.txt"))
	if err != nil {
		return nil, fmt.Errorf("create stdout log file: %w", err)
	}
	defer func() { _ = stdoutFile.Close() }()
	stderrFile, err := os.Create(filepath.Join(step.Dir, "logs", "stderr.txt"))
	if err != nil {
		return nil, fmt.Errorf("create stderr log file: %w", err)
	}
	defer func() { _ = stderrFile.Close() }()

	stdout, stderr := outputWriters(logging.DebugEnabled(), stdoutFile, stderrFile)

	outputSchema := stageOutputSchema
	if s.cfg.Review {
		outputSchema = reviewOutputSchema
	}
	execAgent, err := adk.NewExecAgent(
		s.cfg.Name,
		s.cfg.Description,
		s.cmd,
		adk.WithExecAgentPrompt(step.Prompt),
		adk.WithExecAgentInputSchema(stageInputSchema),
		adk.WithExecAgentOutputSchema(outputSchema),
		adk.WithExecAgentRunDir(step.Dir),
		adk.WithExecAgentUseTTY(s.cfg.Agent.UseTTY != nil && *s.cfg.Agent.UseTTY),
		adk.WithExecAgentStdout(stdout),
		adk.WithExecAgentStderr(stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("create exec agent: %w", err)
	}

	sessionService := session.InMemoryService()
	adkRunner, err := runner.New(runner.Config{
		AppName:        "devflow-" + s.cfg.Name,
		Agent:          execAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec runner: %w", err)
	}
	sess, err := sessionService.Create(ctx, &session.CreateRequest{
		AppName: "devflow-" + s.cfg.Name,
		UserID:  execUserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec session: %w", err)
	}

	userContent := genai.NewContentFromText(string(step.Input), genai.RoleUser)
	var lastOut []byte
	for ev, err := range adkRunner.Run(ctx, execUserID, sess.Session.ID(), userContent, agent.RunConfig{}) {
		if err != nil {
			return nil, err
		}
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			lastOut = []byte(ev.Content.Parts[0].Text)
		}
	}
	if len(lastOut) == 0 {
		return nil, errors.New("agent produced empty output")
	}
	if err := os.WriteFile(filepath.Join(step.Dir, "output.json"), lastOut, 0o644); err != nil {
		log.Warn().Err(err).Str("dir", step.Dir).Msg("failed to save output.json")
	}
	return lastOut, nil
}

func outputWriters(debug bool, stdoutFile, stderrFile io.Writer) (io.Writer, io.Writer) {
	if !debug {
		return stdoutFile, stderrFile
	}
	return io.MultiWriter(os.Stdout, stdoutFile), io.MultiWriter(os.Stderr, stderrFile)
}

func renderInstruction(instruction string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(instruction)
}

func outputContract(reviewStage bool) string {
	if reviewStage {
		return "\n\nReply with JSON only: {\"status\": \"APPROVED\" or \"NEEDS_REVISION\", \"review_feedback\": \"...\", \"summary\": \"...\"}.\n"
	}
	return "\n\nReply with JSON only: {\"summary\": \"...\"} where summary is your final report.\n"
}
