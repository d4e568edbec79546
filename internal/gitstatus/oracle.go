// Package gitstatus classifies paths against the enclosing git
// repository using a single batched status scan.
package gitstatus

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// FileStatus is the per-path classification relative to index, HEAD
// and working tree at the moment of the snapshot.
type FileStatus int

const (
	// Clean: tracked, identical to HEAD and index.
	Clean FileStatus = iota
	// Modified: tracked, working tree differs from index or HEAD.
	Modified
	// Staged: index differs from HEAD.
	Staged
	// Untracked: not tracked, not ignored.
	Untracked
	// Ignored: matched by repository ignore rules.
	Ignored
	// NotInRepo: the path is not under any git work tree.
	NotInRepo
)

func (s FileStatus) String() string {
	switch s {
	case Clean:
		return "clean"
	case Modified:
		return "modified"
	case Staged:
		return "staged"
	case Untracked:
		return "untracked"
	case Ignored:
		return "ignored"
	case NotInRepo:
		return "not in a repository"
	default:
		return "unknown"
	}
}

// Deletable reports whether a status permits deletion under the strict
// policy. Anything carrying uncommitted content does not.
func Deletable(s FileStatus) bool {
	switch s {
	case Clean, Ignored, NotInRepo:
		return true
	default:
		return false
	}
}

// Oracle answers per-path status questions from one repository-wide
// snapshot. The snapshot maps are populated once by Snapshot and read
// only afterwards.
type Oracle struct {
	root        string // work tree top level, empty when not a repo
	dirty       map[string]FileStatus
	tracked     map[string]struct{}
	ignoredDirs []string // "dir/" entries from the status scan
	prepared    bool
	log         *slog.Logger
}

// Open locates the repository enclosing dir. A directory outside any
// work tree (or a host without git installed) yields an oracle whose
// Status always reports NotInRepo; that is not an error.
func Open(dir string, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Oracle{log: logger}
	out, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		o.log.Debug("no git repository", "dir", dir, "err", err)
		return o
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return o
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	o.root = root
	return o
}

// InRepo reports whether Open found an enclosing repository.
func (o *Oracle) InRepo() bool { return o.root != "" }

// Root returns the canonical work tree top level, empty when not in a
// repository.
func (o *Oracle) Root() string { return o.root }

// Snapshot runs the repository-wide scan. It is invoked at most once,
// and only when the active policy actually needs status information.
// Calling Snapshot outside a repository is a no-op.
func (o *Oracle) Snapshot() error {
	if !o.InRepo() || o.prepared {
		return nil
	}
	statusOut, err := gitOutput(o.root,
		"status", "--porcelain", "-z", "--untracked-files=all", "--ignored=matching")
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}
	lsOut, err := gitOutput(o.root, "ls-files", "-z")
	if err != nil {
		return fmt.Errorf("git ls-files: %w", err)
	}

	o.dirty = make(map[string]FileStatus)
	o.tracked = make(map[string]struct{})
	o.parseStatus(statusOut)
	for _, p := range splitNul(lsOut) {
		o.tracked[p] = struct{}{}
	}
	o.prepared = true
	o.log.Debug("git status snapshot",
		"root", o.root, "dirty", len(o.dirty), "tracked", len(o.tracked))
	return nil
}

// parseStatus consumes `git status --porcelain -z` output: NUL-separated
// "XY path" entries, where a rename carries the original path as an
// extra NUL-separated field.
func (o *Oracle) parseStatus(out []byte) {
	fields := splitNul(out)
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		x, y := entry[0], entry[1]
		path := entry[3:]
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			// Skip the origin path of a rename/copy.
			i++
		}
		st := classify(x, y)
		if st == Ignored && strings.HasSuffix(path, "/") {
			o.ignoredDirs = append(o.ignoredDirs, strings.TrimSuffix(path, "/"))
			continue
		}
		o.dirty[strings.TrimSuffix(path, "/")] = st
	}
}

// classify maps a porcelain XY code to a FileStatus. Precedence follows
// the strictness order: ignored, then index changes, then work tree
// changes, then untracked.
func classify(x, y byte) FileStatus {
	switch {
	case x == '!' || y == '!':
		return Ignored
	case x == '?' || y == '?':
		return Untracked
	case x != ' ' && x != 0:
		return Staged
	case y != ' ' && y != 0:
		return Modified
	default:
		return Clean
	}
}

// Status classifies one canonical absolute path against the snapshot.
// Paths absent from the scan are tracked-and-clean, under an ignored
// directory, or new since nothing else can exist: absence from the
// dirty set implies cleanliness for tracked paths.
func (o *Oracle) Status(abs string) FileStatus {
	if !o.InRepo() {
		return NotInRepo
	}
	rel, err := filepath.Rel(o.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return NotInRepo
	}
	rel = filepath.ToSlash(rel)
	if !o.prepared {
		return Clean
	}
	if st, ok := o.dirty[rel]; ok {
		return st
	}
	for _, dir := range o.ignoredDirs {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return Ignored
		}
	}
	if _, ok := o.tracked[rel]; ok {
		return Clean
	}
	return Untracked
}

func gitOutput(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git %s: %s", args[0], msg)
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}

func splitNul(out []byte) []string {
	var parts []string
	for _, f := range bytes.Split(out, []byte{0}) {
		if len(f) > 0 {
			parts = append(parts, string(f))
		}
	}
	return parts
}
