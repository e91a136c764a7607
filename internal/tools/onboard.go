package tools

import (
	"context"

	"github.com/metalagman/devflow/internal/git"
)

const (
	onboardMaxDocBytes = 8 * 1024
	onboardMaxFiles    = 200
)

var onboardDocs = []string{"README.md", "AGENTS.md", "CONTRIBUTING.md"}

// OnboardResult summarizes the project for an agent starting work.
type OnboardResult struct {
	Root         string            `json:"root"`
	Branch       string            `json:"branch,omitempty"`
	Remote       string            `json:"remote,omitempty"`
	Docs         map[string]string `json:"docs,omitempty"`
	TrackedCount int               `json:"tracked_count"`
	Files        []string          `json:"files"`
	Truncated    bool              `json:"truncated,omitempty"`
	Notes        []string          `json:"notes,omitempty"`
}

// OnboardProject collects branch, remote, key docs and the tracked file list.
// Missing pieces are reported in Notes.
func (e *Env) OnboardProject(ctx context.Context) OnboardResult {
	out := OnboardResult{Root: e.Root.Dir(), Docs: map[string]string{}}

	if branch, err := git.CurrentBranch(ctx, e.Root.Dir()); err == nil {
		out.Branch = branch
	} else {
		out.Notes = append(out.Notes, "branch unavailable: "+err.Error())
	}
	if remote, err := git.RemoteURL(e.Root.Dir(), "origin"); err == nil {
		out.Remote = remote
	}

	for _, name := range onboardDocs {
		content, err := e.Root.ReadFile(name)
		if err != nil {
			continue
		}
		if len(content) > onboardMaxDocBytes {
			content = content[:onboardMaxDocBytes] + "\n[truncated]"
		}
		out.Docs[name] = content
	}

	files, err := git.TrackedFiles(e.Root.Dir())
	if err != nil {
		out.Notes = append(out.Notes, "git files unavailable: "+err.Error())
		files, err = e.Root.List(".")
		if err != nil {
			out.Notes = append(out.Notes, "listing unavailable: "+describe(err))
		}
	}
	out.TrackedCount = len(files)
	if len(files) > onboardMaxFiles {
		files = files[:onboardMaxFiles]
		out.Truncated = true
	}
	out.Files = files
	return out
}
