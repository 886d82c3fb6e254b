// Package roots implements the filesystem boundary for tool calls: a fixed
// set of canonical root directories, and a check that a candidate path stays
// inside one of them after symlinks and relative segments are resolved.
package roots

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeniedError explains why a path was rejected. It names the normalized
// candidate and the configured roots, never unrelated filesystem structure.
type DeniedError struct {
	Path   string   // normalized candidate, as far as it could be resolved
	Roots  []string // configured canonical roots
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %q is outside allowed roots %v (%s)", e.Path, e.Roots, e.Reason)
}

// Set is an ordered collection of canonicalized absolute root directories,
// fixed at construction.
type Set struct {
	roots []string
}

// NewSet canonicalizes every configured root eagerly: each is created if
// missing, made absolute, and resolved through symlinks. Resolving up front
// means later IsAllowed checks compare against exactly the directories that
// exist now, not whatever a path string happens to point at later.
func NewSet(paths []string) (*Set, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("roots: at least one root directory is required")
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("roots: resolve %q: %w", p, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("roots: create %q: %w", abs, err)
		}
		canon, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("roots: canonicalize %q: %w", abs, err)
		}
		resolved = append(resolved, canon)
	}
	return &Set{roots: resolved}, nil
}

// Roots returns a copy of the canonical root list.
func (s *Set) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// IsAllowed reports whether candidate resolves to a path equal to or below
// one of the roots. It returns nil when allowed and a *DeniedError otherwise.
//
// The candidate is canonicalized the same way the roots were, so traversal
// sequences, absolute-path overrides, and symlink escapes all end up compared
// post-resolution. Paths that do not exist yet resolve through their nearest
// existing ancestor, so a file about to be written into a fresh subdirectory
// of a root is allowed. A candidate that cannot be canonicalized (permission
// error, cyclic symlink) is denied with the failure attached — it is never
// treated as allowed.
func (s *Set) IsAllowed(candidate string) error {
	canon, err := s.canonicalize(candidate)
	if err != nil {
		return &DeniedError{Path: candidate, Roots: s.Roots(), Reason: err.Error()}
	}

	for _, root := range s.roots {
		if contains(root, canon) {
			return nil
		}
	}
	return &DeniedError{Path: canon, Roots: s.Roots(), Reason: "not under any allowed root"}
}

// canonicalize makes candidate absolute and resolves symlinks. Trailing path
// elements may not exist yet (a file about to be written into a directory the
// tool will create), so resolution walks up to the nearest existing ancestor,
// canonicalizes that, and re-joins the missing components. Only resolution
// failures other than non-existence (permission errors, cyclic symlinks) are
// canonicalization failures. Relative segments are already cleaned out by
// filepath.Abs, so the re-joined suffix cannot traverse upward.
func (s *Set) canonicalize(candidate string) (string, error) {
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", err
	}

	prefix := abs
	var missing []string
	for {
		canon, err := filepath.EvalSymlinks(prefix)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				canon = filepath.Join(canon, missing[i])
			}
			return canon, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %q: %w", prefix, err)
		}
		parent := filepath.Dir(prefix)
		if parent == prefix {
			return "", fmt.Errorf("resolve %q: %w", abs, err)
		}
		missing = append(missing, filepath.Base(prefix))
		prefix = parent
	}
}

// contains reports whether path equals root or lives below it.
func contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
