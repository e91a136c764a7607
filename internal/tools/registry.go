package tools

import (
	"fmt"
	"sort"

	"github.com/metalagman/devflow/internal/review"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// Constructor builds an ADK tool bound to env.
type Constructor func(env *Env) (tool.Tool, error)

// Registry maps tool names to constructors.
type Registry struct {
	env   *Env
	ctors map[string]Constructor
}

// NewRegistry returns a registry holding every devflow tool.
func NewRegistry(env *Env) *Registry {
	return &Registry{
		env: env,
		ctors: map[string]Constructor{
			NameReadFile:        newReadFileTool,
			NameWriteFile:       newWriteFileTool,
			NameListDirectory:   newListDirectoryTool,
			NameRunShellCommand: newRunShellCommandTool,
			NameListGitFiles:    newListGitFilesTool,
			NameOnboardProject:  newOnboardProjectTool,
			NameSetReviewStatus: newSetReviewStatusTool,
		},
	}
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named tools in the given order.
func (r *Registry) Build(names ...string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		ctor, ok := r.ctors[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		t, err := ctor(r.env)
		if err != nil {
			return nil, fmt.Errorf("build tool %q: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func newReadFileTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameReadFile,
		Description: "Reads a file inside the project and returns its content.",
	}, func(_ tool.Context, args PathArgs) (TextResult, error) {
		return env.ReadFile(args), nil
	})
}

func newWriteFileTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameWriteFile,
		Description: "Writes the complete content of a file inside the project, creating parent directories.",
	}, func(_ tool.Context, args WriteFileArgs) (TextResult, error) {
		return env.WriteFile(args), nil
	})
}

func newListDirectoryTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameListDirectory,
		Description: "Recursively lists files and directories below a project path.",
	}, func(_ tool.Context, args PathArgs) (ListResult, error) {
		return env.ListDirectory(args), nil
	})
}

func newRunShellCommandTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameRunShellCommand,
		Description: "Runs a shell command from the project root. Returns stdout, or exit code with stdout and stderr on failure.",
	}, func(ctx tool.Context, args CommandArgs) (TextResult, error) {
		return env.RunShellCommand(ctx, args), nil
	})
}

func newListGitFilesTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameListGitFiles,
		Description: "Lists files tracked by git, which excludes anything ignored.",
	}, func(_ tool.Context, _ NoArgs) (ListResult, error) {
		return env.ListGitFiles(), nil
	})
}

func newOnboardProjectTool(env *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameOnboardProject,
		Description: "Summarizes the project: branch, remote, README and AGENTS docs, tracked files.",
	}, func(ctx tool.Context, _ NoArgs) (OnboardResult, error) {
		return env.OnboardProject(ctx), nil
	})
}

func newSetReviewStatusTool(_ *Env) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameSetReviewStatus,
		Description: "Records the review verdict (APPROVED or NEEDS_REVISION) with feedback. APPROVED ends the refinement loop.",
	}, func(ctx tool.Context, args ReviewArgs) (ReviewResult, error) {
		res, d := SetReviewStatus(ctx.State(), args)
		if res.Status == StatusSuccess && d.Control == review.Stop {
			ctx.Actions().Escalate = true
		}
		return res, nil
	})
}
