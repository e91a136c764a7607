package review

// LoopState is the refinement loop's position in its state machine.
type LoopState int

const (
	Looping LoopState = iota
	Stopped
)

func (s LoopState) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "looping"
}

// Loop tracks a bounded refinement loop. LOOPING moves to STOPPED only on a
// Stop control; STOPPED is terminal. The iteration bound ends the loop
// without a transition.
type Loop struct {
	max       int
	iteration int
	state     LoopState
}

// NewLoop returns a loop allowing at most max iterations.
func NewLoop(max int) *Loop {
	if max < 1 {
		max = 1
	}
	return &Loop{max: max}
}

// Next starts a new iteration and reports whether one may run.
func (l *Loop) Next() bool {
	if l.state == Stopped || l.iteration >= l.max {
		return false
	}
	l.iteration++
	return true
}

// Observe applies the control returned by a review stage.
func (l *Loop) Observe(c Control) {
	if c == Stop {
		l.state = Stopped
	}
}

// State returns the current loop state.
func (l *Loop) State() LoopState { return l.state }

// Iteration returns the number of iterations started so far.
func (l *Loop) Iteration() int { return l.iteration }

// Max returns the iteration bound.
func (l *Loop) Max() int { return l.max }

// Exhausted reports whether the bound ended the loop while still looping.
func (l *Loop) Exhausted() bool {
	return l.state == Looping && l.iteration >= l.max
}
