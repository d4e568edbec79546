package policy

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/saferm/saferm/internal/config"
	"github.com/saferm/saferm/internal/pathcheck"
)

// AllowedRule is one pre-resolved bypass rule.
type AllowedRule struct {
	// Dir is canonical: tilde expanded, symlinks resolved.
	Dir       string
	Recursive bool
}

// RuleSet holds the allowed_paths rules resolved once at startup.
// Entries whose directory cannot be canonicalized (typically because
// it does not exist) are dropped at load time, not retried per check.
type RuleSet struct {
	rules []AllowedRule
}

// NewRuleSet resolves config entries into a RuleSet.
func NewRuleSet(entries []config.AllowedPath) *RuleSet {
	rs := &RuleSet{}
	for _, e := range entries {
		expanded := pathcheck.ExpandUser(e.Path)
		canonical, err := filepath.EvalSymlinks(expanded)
		if err != nil {
			continue
		}
		rs.rules = append(rs.rules, AllowedRule{Dir: canonical, Recursive: e.Recursive})
	}
	return rs
}

// Rules returns the resolved rules, for diagnostics output.
func (rs *RuleSet) Rules() []AllowedRule {
	return append([]AllowedRule(nil), rs.rules...)
}

// Matches reports whether the canonical path is covered by any rule.
// A recursive rule covers the directory and any descendant; a
// non-recursive rule covers only immediate children. The first match
// wins; order does not affect the outcome.
func (rs *RuleSet) Matches(canonical string) bool {
	for _, r := range rs.rules {
		if r.Recursive {
			if pathcheck.IsContained(canonical, r.Dir) {
				return true
			}
			continue
		}
		if filepath.Dir(canonical) == r.Dir {
			return true
		}
	}
	return false
}

// ProtectedSet is the compiled protected_paths patterns. Patterns are
// matched against the project-relative slash-separated path, so they
// only apply to contained targets.
type ProtectedSet struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	raw string
	g   glob.Glob
}

// NewProtectedSet compiles the patterns. An invalid pattern is an
// error: silently skipping a protection would widen what is deletable.
func NewProtectedSet(patterns []string) (*ProtectedSet, error) {
	ps := &ProtectedSet{}
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("compile protected pattern %q: %w", pat, err)
		}
		ps.patterns = append(ps.patterns, compiledPattern{raw: pat, g: g})
	}
	return ps, nil
}

// Match returns the first pattern covering rel, or "" when none does.
func (ps *ProtectedSet) Match(rel string) string {
	if rel == "" || rel == "." {
		return ""
	}
	for _, p := range ps.patterns {
		if p.g.Match(rel) {
			return p.raw
		}
	}
	return ""
}
