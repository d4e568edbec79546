// Package policy turns resolved paths into deletion verdicts. The
// engine combines bypass rules, project containment, protected
// patterns and git status into a single Allow or Block decision; the
// coordinator applies it to whole request batches, descending into
// directories when asked.
package policy

import (
	"github.com/saferm/saferm/internal/gitstatus"
)

// BlockReason says which rule refused a deletion. Every Block surfaces
// its reason so a caller (human or agent) can self-correct.
type BlockReason int

const (
	ReasonNone BlockReason = iota
	// ReasonOutsideProject: the canonical path (or a symlink's target)
	// falls outside the project boundary.
	ReasonOutsideProject
	// ReasonUncommittedChange: the strict policy found modified,
	// staged or untracked content.
	ReasonUncommittedChange
	// ReasonDirectoryRead: resolution or enumeration hit an unreadable
	// entry; inability to verify safety reads as unsafe.
	ReasonDirectoryRead
	// ReasonProtectedPath: the path matches a protected_paths pattern.
	ReasonProtectedPath
)

func (r BlockReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonOutsideProject:
		return "outside-project"
	case ReasonUncommittedChange:
		return "uncommitted-change"
	case ReasonDirectoryRead:
		return "directory-read-error"
	case ReasonProtectedPath:
		return "protected-path"
	default:
		return "unknown"
	}
}

// Verdict is the decision for one path. It is computed fresh per
// invocation and never persisted.
type Verdict struct {
	Allowed bool
	// Bypassed marks an Allow produced by an allowed_paths rule so the
	// caller can annotate it distinctly.
	Bypassed bool
	Reason   BlockReason
	// Path is the path the reason refers to; for a blocked directory
	// this may be a descendant rather than the requested path.
	Path string
	// Status carries the git classification behind an
	// uncommitted-change block.
	Status gitstatus.FileStatus
	// Pattern is the protected_paths pattern behind a protected-path
	// block.
	Pattern string
}

// Allow is the plain permissive verdict.
func Allow() Verdict { return Verdict{Allowed: true} }

// AllowBypassed marks a verdict produced by an allowed_paths rule.
func AllowBypassed() Verdict { return Verdict{Allowed: true, Bypassed: true} }

// Block builds a refusal for path with the given reason.
func Block(reason BlockReason, path string) Verdict {
	return Verdict{Reason: reason, Path: path}
}

// StatusSource is the slice of the git oracle the engine needs: one
// status per canonical path. Satisfied by *gitstatus.Oracle.
type StatusSource interface {
	Status(abs string) gitstatus.FileStatus
}
