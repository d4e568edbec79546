// Package pathcheck resolves deletion targets to canonical paths and
// decides whether they fall inside the project boundary.
package pathcheck

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies what a resolved target points at on disk. The lstat
// used for classification never follows symlinks, so a dangling or
// outside-pointing link is still reported as KindSymlink.
type Kind int

const (
	KindMissing Kind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Target is one fully resolved deletion candidate.
type Target struct {
	// Raw is the path exactly as the caller supplied it.
	Raw string
	// Abs is Raw made absolute against the base directory and
	// lexically cleaned. Symlinks are not resolved here.
	Abs string
	// Canonical is Abs with every symlink in the parent chain
	// resolved. The final component is kept as-is so that deleting a
	// symlink refers to the link, not its target.
	Canonical string
	// Kind is the lstat classification of Abs.
	Kind Kind
	// LinkTarget is the canonical form of the link destination when
	// Kind is KindSymlink, empty otherwise.
	LinkTarget string
}

// ExpandUser expands a leading "~" or "~/" to the current user's home
// directory. The expansion is purely textual and happens before any
// filesystem access. Paths like "/tmp/~user" are returned unchanged.
func ExpandUser(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// Resolve canonicalizes raw against base (used for relative paths) and
// classifies what it points at. A missing leaf is fine: the path is
// resolved as far as it exists and the remainder is appended to the
// resolved prefix. An unreadable ancestor is an error; the caller must
// treat that as a reason to refuse, never to proceed.
func Resolve(raw, base string) (*Target, error) {
	if raw == "" {
		return nil, errors.New("empty path")
	}
	p := ExpandUser(raw)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	abs := filepath.Clean(p)

	t := &Target{Raw: raw, Abs: abs}

	info, err := os.Lstat(abs)
	switch {
	case err == nil && info.Mode()&fs.ModeSymlink != 0:
		t.Kind = KindSymlink
	case err == nil && info.IsDir():
		t.Kind = KindDir
	case err == nil:
		t.Kind = KindFile
	case errors.Is(err, fs.ErrNotExist):
		t.Kind = KindMissing
	default:
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}

	// Canonicalize the parent chain, keeping the leaf literal so a
	// symlink leaf is identified by its own location.
	parent, leaf := filepath.Split(abs)
	canonParent, err := canonicalize(filepath.Clean(parent))
	if err != nil {
		return nil, err
	}
	if leaf == "" {
		t.Canonical = canonParent
	} else {
		t.Canonical = filepath.Join(canonParent, leaf)
	}

	if t.Kind == KindSymlink {
		dest, err := filepath.EvalSymlinks(abs)
		if err == nil {
			t.LinkTarget = dest
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("resolve symlink %s: %w", abs, err)
		}
		// A dangling link has no target to check; deleting the link
		// itself is governed by its own location only.
	}

	return t, nil
}

// canonicalize resolves symlinks in path. Components that do not exist
// yet are tolerated: the longest existing prefix is resolved and the
// rest is appended unchanged. Permission failures are returned as
// errors so the caller can fail closed.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	parent := filepath.Dir(path)
	if parent == path {
		// Hit the filesystem root without resolving anything.
		return path, nil
	}
	canonParent, err := canonicalize(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(canonParent, filepath.Base(path)), nil
}

// IsContained reports whether path equals root or sits below it. Both
// arguments must already be canonical; the comparison is per path
// segment, so /proj2 is never mistaken for a child of /proj.
func IsContained(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
