package devflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/devflow/internal/adkexec"
	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/rs/zerolog/log"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"
	"google.golang.org/adk/session"
)

// Stages holds the agent for every role.
type Stages struct {
	SpecWriter  agent.Agent
	Reviewer    agent.Agent
	Implementer agent.Agent
	Committer   agent.Agent
}

// BuildStages creates every role agent through f.
func BuildStages(ctx context.Context, f *roles.Factory) (Stages, error) {
	var s Stages
	targets := []struct {
		role roles.Role
		dst  *agent.Agent
	}{
		{roles.SpecWriter, &s.SpecWriter},
		{roles.Reviewer, &s.Reviewer},
		{roles.Implementer, &s.Implementer},
		{roles.Committer, &s.Committer},
	}
	for _, t := range targets {
		ag, err := f.Build(ctx, t.role)
		if err != nil {
			return Stages{}, fmt.Errorf("build %s: %w", t.role.Name, err)
		}
		*t.dst = ag
	}
	return s, nil
}

// NewPipeline composes SpecWriter, the refinement loop and GitCommitter.
func NewPipeline(s Stages, maxIterations int) (agent.Agent, error) {
	if s.SpecWriter == nil || s.Reviewer == nil || s.Implementer == nil || s.Committer == nil {
		return nil, errors.New("every stage is required")
	}
	loop, err := NewRefinementLoop(s.Reviewer, s.Implementer, maxIterations)
	if err != nil {
		return nil, fmt.Errorf("create refinement loop: %w", err)
	}
	return sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        "DevelopmentWorkflow",
			Description: "Writes a spec, implements and reviews it, then commits the result.",
			SubAgents:   []agent.Agent{s.SpecWriter, loop, s.Committer},
		},
	})
}

// Result is the outcome of one pipeline run.
type Result struct {
	State      State
	Iterations int
	Approved   bool
	// Exhausted is set when the loop hit its bound without approval.
	Exhausted bool
}

// ExecuteInput configures Execute.
type ExecuteInput struct {
	Story         string
	Pipeline      agent.Agent
	MaxIterations int
	SessionID     string
	OnEvent       func(*session.Event)
}

// Execute runs the pipeline on a fresh in-memory session seeded with the story.
func Execute(ctx context.Context, in ExecuteInput) (Result, error) {
	if in.Story == "" {
		return Result{}, errors.New("story is required")
	}
	maxIterations := in.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	log.Info().Str("session_id", in.SessionID).Msg("starting development workflow")
	sess, err := adkexec.Run(ctx, adkexec.RunInput{
		SessionID:    in.SessionID,
		Agent:        in.Pipeline,
		InitialState: Initial(in.Story),
		Message:      in.Story,
		OnEvent:      in.OnEvent,
	})
	if err != nil {
		return Result{}, fmt.Errorf("run workflow: %w", err)
	}

	st := LoadState(sess.State())
	res := Result{
		State:      st,
		Iterations: st.RefinementIteration,
		Approved:   st.Approved(),
	}
	res.Exhausted = !res.Approved && res.Iterations >= maxIterations
	log.Info().
		Int("iterations", res.Iterations).
		Bool("approved", res.Approved).
		Bool("exhausted", res.Exhausted).
		Msg("development workflow finished")
	return res, nil
}
