// Package tools implements the sandboxed capabilities handed to agents:
// file access under the project root, shell commands, git listing and the
// review gate. Handlers never return Go errors for domain failures; they
// render them as descriptive values the model can read.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/devflow/internal/git"
	"github.com/metalagman/devflow/internal/review"
	"github.com/metalagman/devflow/internal/shell"
	"github.com/metalagman/devflow/internal/workspace"
	"github.com/rs/zerolog/log"
)

// Tool names.
const (
	NameReadFile        = "read_file"
	NameWriteFile       = "write_file"
	NameListDirectory   = "list_directory"
	NameRunShellCommand = "run_shell_command"
	NameListGitFiles    = "list_git_files"
	NameOnboardProject  = "onboard_project"
	NameSetReviewStatus = "set_review_status_and_exit_if_approved"
)

// Review tool result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Env binds tool handlers to a project root and a shell runner.
type Env struct {
	Root  *workspace.Root
	Shell *shell.Runner
}

// PathArgs addresses a file or directory.
type PathArgs struct {
	Path string `json:"path" jsonschema:"path relative to the project root"`
}

// WriteFileArgs carries the file path and its full new content.
type WriteFileArgs struct {
	Path    string `json:"path"    jsonschema:"path relative to the project root"`
	Content string `json:"content" jsonschema:"complete file content to write"`
}

// CommandArgs carries a shell command line.
type CommandArgs struct {
	Command string `json:"command" jsonschema:"shell command executed from the project root"`
}

// NoArgs is the argument type of parameterless tools.
type NoArgs struct{}

// ReviewArgs carries a review verdict.
type ReviewArgs struct {
	Status         string `json:"status"          jsonschema:"APPROVED or NEEDS_REVISION"`
	ReviewFeedback string `json:"review_feedback" jsonschema:"actionable feedback for the implementer"`
}

// TextResult wraps a single text value.
type TextResult struct {
	Result string `json:"result"`
}

// ListResult wraps a list of paths.
type ListResult struct {
	Result []string `json:"result"`
}

// ReviewResult reports whether the verdict was recorded.
type ReviewResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReadFile returns the file content or an error description.
func (e *Env) ReadFile(args PathArgs) TextResult {
	content, err := e.Root.ReadFile(args.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", args.Path).Msg("read_file failed")
		return TextResult{Result: fmt.Sprintf("Error reading file %s: %s", args.Path, describe(err))}
	}
	return TextResult{Result: content}
}

// WriteFile replaces the file content.
func (e *Env) WriteFile(args WriteFileArgs) TextResult {
	if err := e.Root.WriteFile(args.Path, args.Content); err != nil {
		log.Debug().Err(err).Str("path", args.Path).Msg("write_file failed")
		return TextResult{Result: fmt.Sprintf("Error writing file %s: %s", args.Path, describe(err))}
	}
	log.Info().Str("path", args.Path).Int("bytes", len(args.Content)).Msg("file written")
	return TextResult{Result: fmt.Sprintf("File %s written successfully.", args.Path)}
}

// ListDirectory lists every entry below the path. Failures come back as a
// single-element list holding the error description.
func (e *Env) ListDirectory(args PathArgs) ListResult {
	path := args.Path
	if path == "" {
		path = "."
	}
	entries, err := e.Root.List(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("list_directory failed")
		return ListResult{Result: []string{fmt.Sprintf("Error listing directory %s: %s", path, describe(err))}}
	}
	return ListResult{Result: entries}
}

// RunShellCommand runs the command from the project root and returns stdout,
// or the formatted failure with both streams.
func (e *Env) RunShellCommand(ctx context.Context, args CommandArgs) TextResult {
	res, err := e.Shell.Run(ctx, args.Command)
	if err != nil {
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			return TextResult{Result: shell.FormatFailure(cmdErr.Result)}
		}
		return TextResult{Result: fmt.Sprintf("Error running command: %v", err)}
	}
	return TextResult{Result: res.Stdout}
}

// ListGitFiles lists files tracked by git.
func (e *Env) ListGitFiles() ListResult {
	files, err := git.TrackedFiles(e.Root.Dir())
	if err != nil {
		return ListResult{Result: []string{fmt.Sprintf("Error listing git files: %v", err)}}
	}
	return ListResult{Result: files}
}

// SetReviewStatus applies a verdict through the review gate. The returned
// decision is only meaningful when the result status is success.
func SetReviewStatus(st review.State, args ReviewArgs) (ReviewResult, review.Decision) {
	d, err := review.Record(st, args.Status, args.ReviewFeedback)
	if err != nil {
		log.Warn().Err(err).Str("status", args.Status).Msg("review verdict rejected")
		return ReviewResult{
			Status:  StatusError,
			Message: fmt.Sprintf("Invalid review status %q: use %s or %s, with feedback for %s.", args.Status, review.Approved, review.NeedsRevision, review.NeedsRevision),
		}, review.Decision{}
	}

	log.Info().Str("status", string(d.Verdict)).Str("control", d.Control.String()).Msg("review recorded")
	msg := fmt.Sprintf("Review status set to %s. Implementer will revise.", d.Verdict)
	if d.Control == review.Stop {
		msg = fmt.Sprintf("Review status set to %s. Exiting refinement loop.", d.Verdict)
	}
	return ReviewResult{Status: StatusSuccess, Message: msg}, d
}

func describe(err error) string {
	var ioErr *workspace.IOError
	if errors.As(err, &ioErr) {
		return ioErr.Err.Error()
	}
	return err.Error()
}
