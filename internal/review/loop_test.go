package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopStopsOnApproval(t *testing.T) {
	t.Parallel()

	l := NewLoop(5)
	controls := []Control{Continue, Continue, Stop, Continue}
	ran := 0
	for l.Next() {
		l.Observe(controls[ran])
		ran++
	}

	assert.Equal(t, 3, ran)
	assert.Equal(t, Stopped, l.State())
	assert.False(t, l.Exhausted())
	assert.False(t, l.Next(), "stopped is terminal")
}

func TestLoopWithoutApprovalRunsExactlyMax(t *testing.T) {
	t.Parallel()

	for _, max := range []int{1, 2, 5} {
		l := NewLoop(max)
		ran := 0
		for l.Next() {
			l.Observe(Continue)
			ran++
		}
		assert.Equal(t, max, ran)
		assert.Equal(t, Looping, l.State())
		assert.True(t, l.Exhausted())
	}
}

func TestLoopApprovalOnLastIterationIsNotExhausted(t *testing.T) {
	t.Parallel()

	l := NewLoop(2)
	l.Next()
	l.Observe(Continue)
	l.Next()
	l.Observe(Stop)

	assert.Equal(t, Stopped, l.State())
	assert.False(t, l.Exhausted())
	assert.Equal(t, 2, l.Iteration())
}

func TestNewLoopClampsBound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, NewLoop(0).Max())
}
