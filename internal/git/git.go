// Package git provides the repository queries used by onboarding and the
// git file listing tool.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"
)

// ErrNotRepository is returned when the directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Available checks if the given directory is inside a git work tree.
func Available(ctx context.Context, repoRoot string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// RunCmdOutput runs a command in dir and returns its combined output.
func RunCmdOutput(ctx context.Context, dir string, name string, args ...string) (string, error) {
	log.Debug().Str("dir", dir).Str("cmd", name).Strs("args", args).Msg("running git command")
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// CurrentBranch returns the checked out branch name.
func CurrentBranch(ctx context.Context, repoRoot string) (string, error) {
	if !Available(ctx, repoRoot) {
		return "", fmt.Errorf("%s: %w", repoRoot, ErrNotRepository)
	}
	out, err := RunCmdOutput(ctx, repoRoot, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", fmt.Errorf("resolve branch: empty branch name")
	}
	if branch == "HEAD" {
		return "", fmt.Errorf("resolve branch: detached HEAD")
	}
	return branch, nil
}

// TrackedFiles lists the paths recorded in the git index that lie under
// projectRoot, relative to it and sorted. Ignored and untracked files never
// appear. projectRoot may be a subdirectory of the work tree.
func TrackedFiles(projectRoot string) ([]string, error) {
	repo, err := open(projectRoot)
	if err != nil {
		return nil, err
	}
	prefix, err := worktreePrefix(repo, projectRoot)
	if err != nil {
		return nil, err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read git index: %w", err)
	}
	files := make([]string, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		name := entry.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(name, prefix)
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// worktreePrefix returns projectRoot relative to the work tree root as a
// slash path ending in "/", or empty when they are the same directory.
func worktreePrefix(repo *gogit.Repository, projectRoot string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	top, err := canonical(wt.Filesystem.Root())
	if err != nil {
		return "", err
	}
	dir, err := canonical(projectRoot)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(top, dir)
	if err != nil {
		return "", fmt.Errorf("locate %s in worktree: %w", projectRoot, err)
	}
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside worktree %s", projectRoot, top)
	}
	return filepath.ToSlash(rel) + "/", nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}

// RemoteURL returns the first URL of the named remote, or empty when unset.
func RemoteURL(repoRoot, name string) (string, error) {
	repo, err := open(repoRoot)
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote(name)
	if err != nil {
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", nil
	}
	return urls[0], nil
}

func open(repoRoot string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(repoRoot, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", repoRoot, ErrNotRepository)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}
