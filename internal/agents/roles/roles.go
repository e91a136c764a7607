// Package roles defines the four workflow roles: their prompts, the tools
// each one may call and the state key each one writes.
package roles

import (
	"embed"
	"fmt"

	"github.com/metalagman/devflow/internal/config"
	"github.com/metalagman/devflow/internal/review"
	"github.com/metalagman/devflow/internal/tools"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Shared workflow state keys. Prompts reference them as {key} placeholders.
const (
	KeyStoryPrompt           = "story_prompt"
	KeyTechSpec              = "tech_spec"
	KeyImplementationSummary = "implementation_summary"
	KeyReviewStatus          = review.KeyStatus
	KeyReviewFeedback        = review.KeyFeedback
	KeyFinalCommitSummary    = "final_commit_summary"
	KeyRefinementIteration   = "refinement_iteration"
	KeyReviewControl         = "review_control"
)

// StateKeys lists the string-valued workflow keys in pipeline order.
var StateKeys = []string{
	KeyStoryPrompt,
	KeyTechSpec,
	KeyImplementationSummary,
	KeyReviewStatus,
	KeyReviewFeedback,
	KeyFinalCommitSummary,
}

// Role is the static definition of a workflow role.
type Role struct {
	// Key is the role name used in config profiles.
	Key         string
	Name        string
	Description string
	Tools       []string
	// OutputKey receives the final answer. Empty for the reviewer, whose
	// result lands in state through the review gate.
	OutputKey string
	Review    bool
	prompt    string
}

var (
	SpecWriter = Role{
		Key:         config.RoleSpecWriter,
		Name:        "SpecWriter",
		Description: "Generates a technical spec from a user story.",
		Tools:       []string{tools.NameOnboardProject, tools.NameListGitFiles, tools.NameListDirectory, tools.NameReadFile},
		OutputKey:   KeyTechSpec,
		prompt:      "prompts/spec_writer.md",
	}
	Implementer = Role{
		Key:         config.RoleImplementer,
		Name:        "CodeImplementer",
		Description: "Implements or refines code based on the spec and review feedback.",
		Tools: []string{
			tools.NameOnboardProject, tools.NameListGitFiles, tools.NameListDirectory,
			tools.NameReadFile, tools.NameWriteFile, tools.NameRunShellCommand,
		},
		OutputKey: KeyImplementationSummary,
		prompt:    "prompts/implementer.md",
	}
	Reviewer = Role{
		Key:         config.RoleReviewer,
		Name:        "CodeReviewer",
		Description: "Reviews the code and approves it or requests revisions.",
		Tools: []string{
			tools.NameOnboardProject, tools.NameListDirectory, tools.NameReadFile,
			tools.NameListGitFiles, tools.NameRunShellCommand, tools.NameSetReviewStatus,
		},
		Review: true,
		prompt: "prompts/reviewer.md",
	}
	Committer = Role{
		Key:         config.RoleCommitter,
		Name:        "GitCommitter",
		Description: "Creates a feature branch, commits the approved code and opens a pull request.",
		Tools:       []string{tools.NameRunShellCommand},
		OutputKey:   KeyFinalCommitSummary,
		prompt:      "prompts/committer.md",
	}
)

// All returns every role in pipeline order.
func All() []Role {
	return []Role{SpecWriter, Reviewer, Implementer, Committer}
}

// Instruction returns the role prompt.
func (r Role) Instruction() (string, error) {
	data, err := promptFS.ReadFile(r.prompt)
	if err != nil {
		return "", fmt.Errorf("read prompt for %s: %w", r.Name, err)
	}
	return string(data), nil
}
