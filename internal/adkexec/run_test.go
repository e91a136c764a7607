package adkexec

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
)

func TestRunRequiresAgent(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), RunInput{})
	assert.Error(t, err)
}

func TestRunReturnsFinalState(t *testing.T) {
	t.Parallel()

	ag, err := agent.New(agent.Config{
		Name:        "writer",
		Description: "writes state",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
			return func(yield func(*session.Event, error) bool) {
				ev := session.NewEvent(ctx.InvocationID())
				ev.Author = "writer"
				ev.Actions.StateDelta = map[string]any{"out": "done"}
				yield(ev, nil)
			}
		},
	})
	require.NoError(t, err)

	var events int
	sess, err := Run(context.Background(), RunInput{
		Agent:        ag,
		InitialState: map[string]any{"in": "x"},
		Message:      "go",
		OnEvent:      func(*session.Event) { events++ },
	})
	require.NoError(t, err)

	in, err := sess.State().Get("in")
	require.NoError(t, err)
	assert.Equal(t, "x", in)
	out, err := sess.State().Get("out")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.GreaterOrEqual(t, events, 1)
}
