package devflow

import (
	"fmt"
	"iter"

	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/review"
	"github.com/rs/zerolog/log"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
)

// DefaultMaxIterations bounds the refinement loop when config does not.
const DefaultMaxIterations = 5

const loopAgentName = "CodeRefinementLoop"

// RefinementLoop alternates the reviewer and the implementer until the
// reviewer approves or the iteration bound is reached.
type RefinementLoop struct {
	reviewer      agent.Agent
	implementer   agent.Agent
	maxIterations int
}

// NewRefinementLoop returns the loop as an ADK agent.
func NewRefinementLoop(reviewer, implementer agent.Agent, maxIterations int) (agent.Agent, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	l := &RefinementLoop{
		reviewer:      reviewer,
		implementer:   implementer,
		maxIterations: maxIterations,
	}
	return agent.New(agent.Config{
		Name:        loopAgentName,
		Description: "Reviews and refines the implementation until approved.",
		SubAgents:   []agent.Agent{reviewer, implementer},
		Run:         l.Run,
	})
}

// Run executes the loop. An escalation from the reviewer is consumed here so
// it does not end the enclosing pipeline.
func (l *RefinementLoop) Run(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		loop := review.NewLoop(l.maxIterations)
		for loop.Next() {
			if ctx.Ended() {
				return
			}
			iteration := loop.Iteration()
			if err := ctx.Session().State().Set(roles.KeyRefinementIteration, iteration); err != nil {
				yield(nil, fmt.Errorf("set %s: %w", roles.KeyRefinementIteration, err))
				return
			}
			ev := session.NewEvent(ctx.InvocationID())
			ev.Author = loopAgentName
			ev.Actions.StateDelta = map[string]any{roles.KeyRefinementIteration: iteration}
			if !yield(ev, nil) {
				return
			}
			log.Info().Int("iteration", iteration).Int("max", l.maxIterations).Msg("refinement iteration started")

			control, ok := l.runStage(ctx, l.reviewer, yield)
			if !ok {
				return
			}
			loop.Observe(control)
			if loop.State() == review.Stopped {
				log.Info().Int("iteration", iteration).Msg("implementation approved, leaving refinement loop")
				yield(l.stopEvent(ctx, iteration))
				return
			}

			if _, ok := l.runStage(ctx, l.implementer, yield); !ok {
				return
			}
		}
		log.Warn().Int("iterations", loop.Iteration()).Msg("refinement loop exhausted without approval")
	}
}

// stopEvent records the consumed escalation so the run journal still sees
// why the loop ended.
func (l *RefinementLoop) stopEvent(ctx agent.InvocationContext, iteration int) (*session.Event, error) {
	control := review.Stop.String()
	if err := ctx.Session().State().Set(roles.KeyReviewControl, control); err != nil {
		return nil, fmt.Errorf("set %s: %w", roles.KeyReviewControl, err)
	}
	ev := session.NewEvent(ctx.InvocationID())
	ev.Author = loopAgentName
	ev.Actions.StateDelta = map[string]any{
		roles.KeyReviewControl:       control,
		roles.KeyRefinementIteration: iteration,
	}
	return ev, nil
}

func (l *RefinementLoop) runStage(ctx agent.InvocationContext, sub agent.Agent, yield func(*session.Event, error) bool) (review.Control, bool) {
	control := review.Continue
	for ev, err := range sub.Run(ctx) {
		if err != nil {
			yield(nil, err)
			return control, false
		}
		if ev != nil && ev.Actions.Escalate {
			control = review.Stop
			ev.Actions.Escalate = false
		}
		if !yield(ev, nil) {
			return control, false
		}
	}
	return control, true
}
