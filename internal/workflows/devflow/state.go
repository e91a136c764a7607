// Package devflow composes the development workflow:
// SpecWriter, then the review/implement refinement loop, then GitCommitter.
package devflow

import (
	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/review"
)

// State is the typed view of the shared workflow state.
type State struct {
	StoryPrompt           string `json:"story_prompt"`
	TechSpec              string `json:"tech_spec"`
	ImplementationSummary string `json:"implementation_summary"`
	ReviewStatus          string `json:"review_status"`
	ReviewFeedback        string `json:"review_feedback"`
	FinalCommitSummary    string `json:"final_commit_summary"`
	RefinementIteration   int    `json:"refinement_iteration"`
}

// Getter reads state values. ADK's session.State satisfies it.
type Getter interface {
	Get(key string) (any, error)
}

// Initial seeds every key so prompt placeholders always resolve.
func Initial(story string) map[string]any {
	out := make(map[string]any, len(roles.StateKeys)+1)
	for _, key := range roles.StateKeys {
		out[key] = ""
	}
	out[roles.KeyStoryPrompt] = story
	out[roles.KeyRefinementIteration] = 0
	return out
}

// LoadState reads the workflow keys out of st. Missing keys stay empty.
func LoadState(st Getter) State {
	return State{
		StoryPrompt:           str(st, roles.KeyStoryPrompt),
		TechSpec:              str(st, roles.KeyTechSpec),
		ImplementationSummary: str(st, roles.KeyImplementationSummary),
		ReviewStatus:          str(st, roles.KeyReviewStatus),
		ReviewFeedback:        str(st, roles.KeyReviewFeedback),
		FinalCommitSummary:    str(st, roles.KeyFinalCommitSummary),
		RefinementIteration:   num(st, roles.KeyRefinementIteration),
	}
}

// Approved reports whether the last recorded verdict is APPROVED.
func (s State) Approved() bool {
	return review.Verdict(s.ReviewStatus) == review.Approved
}

func str(st Getter, key string) string {
	v, err := st.Get(key)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func num(st Getter, key string) int {
	v, err := st.Get(key)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
