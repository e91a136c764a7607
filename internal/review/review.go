// Package review implements the review gate that ends the refinement loop.
//
// A reviewer records exactly one verdict per iteration. The gate validates
// the verdict, overwrites the stored verdict and feedback together and tells
// the caller whether the enclosing loop should continue or stop.
package review

import (
	"errors"
	"fmt"
	"strings"
)

// State keys owned by the gate.
const (
	KeyStatus   = "review_status"
	KeyFeedback = "review_feedback"
)

// ErrInvalidVerdict is returned for a verdict outside the closed set or a
// revision request without feedback.
var ErrInvalidVerdict = errors.New("invalid verdict")

// Verdict is the reviewer's outcome for one iteration.
type Verdict string

const (
	Approved      Verdict = "APPROVED"
	NeedsRevision Verdict = "NEEDS_REVISION"
)

// ParseVerdict validates s against the closed verdict set.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(strings.TrimSpace(s)); v {
	case Approved, NeedsRevision:
		return v, nil
	case "":
		return "", fmt.Errorf("%w: status is required", ErrInvalidVerdict)
	default:
		return "", fmt.Errorf("%w: %q is not one of %s, %s", ErrInvalidVerdict, s, Approved, NeedsRevision)
	}
}

// Control tells the loop what to do after a review stage.
type Control int

const (
	Continue Control = iota
	Stop
)

func (c Control) String() string {
	if c == Stop {
		return "stop"
	}
	return "continue"
}

// Decision is the applied result of one review.
type Decision struct {
	Verdict  Verdict
	Feedback string
	Control  Control
}

// State is the key/value store the verdict is written into. ADK's
// session.State satisfies it.
type State interface {
	Get(key string) (any, error)
	Set(key string, value any) error
}

// Record validates the verdict and writes it with its feedback. On any error
// the previous status is restored; an absent status comes back as empty.
func Record(st State, status, feedback string) (Decision, error) {
	verdict, err := ParseVerdict(status)
	if err != nil {
		return Decision{}, err
	}
	if verdict == NeedsRevision && strings.TrimSpace(feedback) == "" {
		return Decision{}, fmt.Errorf("%w: feedback is required for %s", ErrInvalidVerdict, NeedsRevision)
	}

	prevStatus, hadStatus := lookup(st, KeyStatus)
	if err := st.Set(KeyStatus, string(verdict)); err != nil {
		return Decision{}, fmt.Errorf("set %s: %w", KeyStatus, err)
	}
	if err := st.Set(KeyFeedback, feedback); err != nil {
		if !hadStatus {
			prevStatus = ""
		}
		_ = st.Set(KeyStatus, prevStatus)
		return Decision{}, fmt.Errorf("set %s: %w", KeyFeedback, err)
	}

	d := Decision{Verdict: verdict, Feedback: feedback, Control: Continue}
	if verdict == Approved {
		d.Control = Stop
	}
	return d, nil
}

// Stored returns the verdict and feedback currently held in st.
func Stored(st State) (Verdict, string) {
	status, _ := lookup(st, KeyStatus)
	feedback, _ := lookup(st, KeyFeedback)
	s, _ := status.(string)
	f, _ := feedback.(string)
	return Verdict(s), f
}

func lookup(st State, key string) (any, bool) {
	v, err := st.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}
