package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/saferm/saferm/internal/gitstatus"
	"github.com/saferm/saferm/internal/pathcheck"
)

// Options are the per-invocation flags the coordinator honors.
type Options struct {
	Recursive bool
	Force     bool
}

// OpErrorKind distinguishes command-misuse outcomes from security
// blocks; they carry a less severe exit status.
type OpErrorKind int

const (
	OpNotFound OpErrorKind = iota
	OpIsDirectory
	OpRemoveFailed
)

// OpError is an operation-level failure: user-facing, but not a safety
// concern.
type OpError struct {
	Kind OpErrorKind
	Path string
	Err  error
}

func (e *OpError) Error() string {
	switch e.Kind {
	case OpNotFound:
		return fmt.Sprintf("cannot remove '%s': No such file or directory", e.Path)
	case OpIsDirectory:
		return fmt.Sprintf("cannot remove '%s': Is a directory (use -r for recursive)", e.Path)
	case OpRemoveFailed:
		return fmt.Sprintf("cannot remove '%s': %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("cannot remove '%s'", e.Path)
	}
}

func (e *OpError) Unwrap() error { return e.Err }

// Result pairs one requested path with its outcome. Exactly one of
// Verdict-block, OpErr, Skipped, or a plain Allow applies.
type Result struct {
	Raw     string
	Target  *pathcheck.Target
	Verdict Verdict
	// Skipped marks a missing path silently ignored under --force.
	Skipped bool
	OpErr   *OpError
}

// Blocked reports whether the result is a security refusal.
func (r Result) Blocked() bool {
	return !r.Skipped && r.OpErr == nil && !r.Verdict.Allowed
}

// Coordinator applies the engine across a batch of requested paths,
// expanding directories under a recursive request so every descendant
// file receives its own verdict.
type Coordinator struct {
	engine *Engine
	base   string // directory relative arguments resolve against
	log    *slog.Logger
}

// NewCoordinator builds a coordinator resolving relative paths against
// base (normally the process working directory).
func NewCoordinator(engine *Engine, base string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{engine: engine, base: base, log: logger}
}

// Process evaluates each requested path in order and returns one
// Result per path. Nothing is deleted here; execution belongs to the
// caller.
func (c *Coordinator) Process(paths []string, opts Options) []Result {
	results := make([]Result, 0, len(paths))
	for _, raw := range paths {
		results = append(results, c.processOne(raw, opts))
	}
	return results
}

func (c *Coordinator) processOne(raw string, opts Options) Result {
	res := Result{Raw: raw}

	t, err := pathcheck.Resolve(raw, c.base)
	if err != nil {
		// Fail closed: a path that cannot be resolved cannot be proven
		// to match an allow rule either.
		c.log.Debug("resolution failed", "path", raw, "err", err)
		res.Verdict = Block(ReasonDirectoryRead, raw)
		return res
	}
	res.Target = t

	// The security decision comes before existence checks so a probe
	// cannot learn whether files outside the project exist.
	res.Verdict = c.engine.Decide(t)
	if !res.Verdict.Allowed {
		return res
	}

	switch {
	case t.Kind == pathcheck.KindMissing && opts.Force:
		res.Skipped = true
		return res
	case t.Kind == pathcheck.KindMissing:
		res.OpErr = &OpError{Kind: OpNotFound, Path: raw}
		return res
	case t.Kind == pathcheck.KindDir && !opts.Recursive:
		res.OpErr = &OpError{Kind: OpIsDirectory, Path: raw}
		return res
	}

	// A bypassed directory is trusted wholesale; otherwise every
	// descendant must independently pass.
	if t.Kind == pathcheck.KindDir && !res.Verdict.Bypassed {
		if v := c.checkTree(t.Canonical); !v.Allowed {
			res.Verdict = v
		}
	}
	return res
}

// checkTree walks a directory subtree and returns the first Block, or
// Allow when every descendant passes. An ignored directory is allowed
// without descent: its entire content is ignore-matched by definition.
// Every path is visited at most once; an unreadable directory blocks
// the whole subtree rather than being skipped.
func (c *Coordinator) checkTree(dir string) Verdict {
	if st, ok := c.dirStatus(dir); ok && st == gitstatus.Ignored {
		return Allow()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log.Debug("enumeration failed", "dir", dir, "err", err)
		return Block(ReasonDirectoryRead, dir)
	}
	for _, entry := range entries {
		child, err := c.childTarget(dir, entry)
		if err != nil {
			return Block(ReasonDirectoryRead, filepath.Join(dir, entry.Name()))
		}
		if v := c.engine.Decide(child); !v.Allowed {
			return v
		}
		if child.Kind == pathcheck.KindDir {
			if v := c.checkTree(child.Canonical); !v.Allowed {
				return v
			}
		}
	}
	return Allow()
}

// childTarget builds a Target for a directory entry without repeating
// the parent-chain resolution: the parent is already canonical.
func (c *Coordinator) childTarget(dir string, entry os.DirEntry) (*pathcheck.Target, error) {
	abs := filepath.Join(dir, entry.Name())
	t := &pathcheck.Target{Raw: abs, Abs: abs, Canonical: abs}
	switch {
	case entry.Type()&os.ModeSymlink != 0:
		t.Kind = pathcheck.KindSymlink
		dest, err := filepath.EvalSymlinks(abs)
		switch {
		case err == nil:
			t.LinkTarget = dest
		case !os.IsNotExist(err):
			// Dangling links are deletable; anything else unverifiable.
			return nil, err
		}
	case entry.IsDir():
		t.Kind = pathcheck.KindDir
	default:
		t.Kind = pathcheck.KindFile
	}
	return t, nil
}

// dirStatus asks the engine's status source about a directory, when
// one is wired.
func (c *Coordinator) dirStatus(dir string) (gitstatus.FileStatus, bool) {
	if c.engine.statuses == nil {
		return 0, false
	}
	return c.engine.statuses.Status(dir), true
}
