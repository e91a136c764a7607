// Package workspace confines file access to a single project root.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside the project root.
var ErrPathEscape = errors.New("path is outside the project root")

// IOError reports a failed read, write or list on a path inside the root.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Root is a canonical project root. It holds no mutable state.
type Root struct {
	dir string
}

// New canonicalises dir and returns a Root for it.
func New(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", resolved)
	}
	return &Root{dir: resolved}, nil
}

// Dir returns the canonical root directory.
func (r *Root) Dir() string { return r.dir }

// Resolve returns the canonical absolute form of path. Relative paths are
// interpreted against the root.
func (r *Root) Resolve(path string) (string, error) {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.dir, candidate)
	}
	resolved, err := evalExisting(filepath.Clean(candidate))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if !r.contains(resolved) {
		return "", fmt.Errorf("%s: %w", path, ErrPathEscape)
	}
	return resolved, nil
}

// Rel returns the root-relative slash form of an already resolved path.
func (r *Root) Rel(resolved string) string {
	rel, err := filepath.Rel(r.dir, resolved)
	if err != nil {
		return resolved
	}
	return filepath.ToSlash(rel)
}

func (r *Root) contains(resolved string) bool {
	if resolved == r.dir {
		return true
	}
	rel, err := filepath.Rel(r.dir, resolved)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// maxLinkHops bounds symlink chains through missing targets.
const maxLinkHops = 40

// evalExisting resolves symlinks for the longest existing prefix of path and
// appends the remaining, not yet existing, components. A dangling symlink is
// followed to its target so the result never hides where a write would land.
func evalExisting(path string) (string, error) {
	return evalExistingHops(path, 0)
}

func evalExistingHops(path string, hops int) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return joinMissing(resolved, missing), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if info, lerr := os.Lstat(current); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops >= maxLinkHops {
				return "", fmt.Errorf("%s: too many levels of symbolic links", path)
			}
			target, err := os.Readlink(current)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(current), target)
			}
			return evalExistingHops(joinMissing(filepath.Clean(target), missing), hops+1)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// joinMissing appends components collected leaf first.
func joinMissing(base string, missing []string) string {
	for i := len(missing) - 1; i >= 0; i-- {
		base = filepath.Join(base, missing[i])
	}
	return base
}

// ReadFile returns the content of the file at path.
func (r *Root) ReadFile(path string) (string, error) {
	resolved, err := r.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// WriteFile creates or overwrites the file at path, creating parent
// directories as needed.
func (r *Root) WriteFile(path, content string) error {
	resolved, err := r.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// List returns every file and directory below path, recursively, as sorted
// root-relative slash paths. The directory itself is not included.
func (r *Root) List(path string) ([]string, error) {
	resolved, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, &IOError{Op: "list", Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &IOError{Op: "list", Path: path, Err: fmt.Errorf("not a directory")}
	}

	var out []string
	walkErr := filepath.WalkDir(resolved, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == resolved {
			return nil
		}
		out = append(out, r.Rel(p))
		return nil
	})
	if walkErr != nil {
		return nil, &IOError{Op: "list", Path: path, Err: walkErr}
	}
	sort.Strings(out)
	return out, nil
}
