package policy

import (
	"log/slog"
	"path/filepath"

	"github.com/saferm/saferm/internal/gitstatus"
	"github.com/saferm/saferm/internal/pathcheck"
)

// Engine evaluates one resolved target against the configured policy.
// It is a pure function of its inputs; every field is immutable after
// construction.
type Engine struct {
	allowProjectDeletion bool
	root                 string // canonical project boundary
	rules                *RuleSet
	protected            *ProtectedSet
	statuses             StatusSource // nil under the permissive policy
	log                  *slog.Logger
}

// NewEngine wires the engine. statuses may be nil when the permissive
// policy makes git classification unnecessary.
func NewEngine(allowProjectDeletion bool, root string, rules *RuleSet, protected *ProtectedSet, statuses StatusSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = &RuleSet{}
	}
	if protected == nil {
		protected = &ProtectedSet{}
	}
	return &Engine{
		allowProjectDeletion: allowProjectDeletion,
		root:                 root,
		rules:                rules,
		protected:            protected,
		statuses:             statuses,
		log:                  logger,
	}
}

// Root returns the project boundary the engine enforces.
func (e *Engine) Root() string { return e.root }

// Decide evaluates the fixed rule order for a single resolved target:
// bypass rules, containment (including a symlink's resolved target),
// protected patterns, then the project-deletion policy and git status.
// The first matching rule wins.
func (e *Engine) Decide(t *pathcheck.Target) Verdict {
	v := e.decide(t)
	e.log.Debug("verdict",
		"path", t.Canonical, "allowed", v.Allowed,
		"bypassed", v.Bypassed, "reason", v.Reason.String())
	return v
}

func (e *Engine) decide(t *pathcheck.Target) Verdict {
	if e.rules.Matches(t.Canonical) {
		return AllowBypassed()
	}
	if !pathcheck.IsContained(t.Canonical, e.root) {
		return Block(ReasonOutsideProject, t.Canonical)
	}
	// A link inside the project pointing outside must not pierce the
	// boundary: its target is checked independently.
	if t.Kind == pathcheck.KindSymlink && t.LinkTarget != "" {
		if !pathcheck.IsContained(t.LinkTarget, e.root) {
			return Block(ReasonOutsideProject, t.LinkTarget)
		}
	}
	if pat := e.protected.Match(e.rel(t.Canonical)); pat != "" {
		v := Block(ReasonProtectedPath, t.Canonical)
		v.Pattern = pat
		return v
	}
	if e.allowProjectDeletion {
		return Allow()
	}
	// A directory is judged by the files inside it during descent, and
	// a missing path has no status; neither consults the oracle here.
	if t.Kind == pathcheck.KindDir || t.Kind == pathcheck.KindMissing {
		return Allow()
	}
	return e.decideByStatus(t.Canonical)
}

// decideByStatus applies the strict policy for an already-contained,
// non-bypassed, non-protected path.
func (e *Engine) decideByStatus(canonical string) Verdict {
	st := gitstatus.NotInRepo
	if e.statuses != nil {
		st = e.statuses.Status(canonical)
	}
	if gitstatus.Deletable(st) {
		return Allow()
	}
	v := Block(ReasonUncommittedChange, canonical)
	v.Status = st
	return v
}

func (e *Engine) rel(canonical string) string {
	rel, err := filepath.Rel(e.root, canonical)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}
