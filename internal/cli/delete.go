package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/saferm/saferm/internal/audit"
	"github.com/saferm/saferm/internal/config"
	"github.com/saferm/saferm/internal/gitstatus"
	"github.com/saferm/saferm/internal/pathcheck"
	"github.com/saferm/saferm/internal/policy"
)

type deleteOptions struct {
	recursive bool
	force     bool
	dryRun    bool
	verbose   bool
}

const (
	exitBlocked = 2
	exitOpError = 1
)

func runDelete(cmd *cobra.Command, args []string, opts *deleteOptions) error {
	logger := newLogger(opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = resolved
	}

	cfg := config.Load()

	// The repository root, when there is one, is the project boundary;
	// otherwise the working directory is. Only the strict policy pays
	// for the repository-wide status scan.
	oracle := gitstatus.Open(cwd, logger)
	root := oracle.Root()
	if root == "" {
		root = cwd
	}
	var statuses policy.StatusSource
	if !cfg.AllowProjectDeletion && oracle.InRepo() {
		if err := oracle.Snapshot(); err != nil {
			// Unable to verify git status means unable to prove
			// safety; refuse everything.
			return NewExitError(exitBlocked, fmt.Sprintf("saferm: cannot verify git status (%v); refusing to delete", err))
		}
		statuses = oracle
	}

	protected, err := policy.NewProtectedSet(cfg.ProtectedPaths)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	engine := policy.NewEngine(cfg.AllowProjectDeletion, root,
		policy.NewRuleSet(cfg.AllowedPaths), protected, statuses, logger)
	coord := policy.NewCoordinator(engine, cwd, logger)

	auditLog := audit.Open(cfg.Audit, logger)
	defer auditLog.Close()

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	removed, failed := 0, 0
	blocked := false

	for _, res := range coord.Process(args, policy.Options{Recursive: opts.recursive, Force: opts.force}) {
		switch {
		case res.Skipped:
			continue
		case res.Blocked():
			blocked = true
			fmt.Fprintf(stderr, "saferm: %s: %s\n", res.Raw, blockMessage(res.Verdict, engine.Root()))
			auditLog.Record(audit.Event{
				Path:    res.Verdict.Path,
				Verdict: "block",
				Reason:  res.Verdict.Reason.String(),
				DryRun:  opts.dryRun,
			})
		case res.OpErr != nil:
			failed++
			fmt.Fprintf(stderr, "saferm: %s\n", res.OpErr.Error())
		default:
			auditLog.Record(audit.Event{
				Path:     res.Target.Canonical,
				Verdict:  "allow",
				Bypassed: res.Verdict.Bypassed,
				DryRun:   opts.dryRun,
			})
			note := ""
			if res.Verdict.Bypassed {
				note = " (allowed by config)"
			}
			if opts.dryRun {
				fmt.Fprintf(stdout, "would remove: %s%s\n", res.Raw, note)
				continue
			}
			if err := remove(res.Target); err != nil {
				failed++
				opErr := &policy.OpError{Kind: policy.OpRemoveFailed, Path: res.Raw, Err: err}
				fmt.Fprintf(stderr, "saferm: %s\n", opErr.Error())
				continue
			}
			removed++
			fmt.Fprintf(stdout, "removed: %s%s\n", res.Raw, note)
		}
	}

	// Security outcomes outrank operation errors across the batch.
	if blocked {
		return NewExitError(exitBlocked, "")
	}
	if failed > 0 {
		return NewExitError(exitOpError, fmt.Sprintf("saferm: %d file(s) removed, %d failed", removed, failed))
	}
	return nil
}

// remove deletes at the path the user named. Directories were already
// gated on --recursive; symlinks remove the link itself only.
func remove(t *pathcheck.Target) error {
	if t.Kind == pathcheck.KindDir {
		return os.RemoveAll(t.Abs)
	}
	return os.Remove(t.Abs)
}

// blockMessage renders one refusal with enough context to self-correct:
// which rule fired, on which path, and what to do about it.
func blockMessage(v policy.Verdict, root string) string {
	label := colorize("blocked", os.Stderr)
	switch v.Reason {
	case policy.ReasonOutsideProject:
		return fmt.Sprintf("%s: '%s' is outside the project root (%s)", label, v.Path, root)
	case policy.ReasonUncommittedChange:
		return fmt.Sprintf("%s: '%s' has uncommitted changes (status: %s); commit it first", label, v.Path, v.Status)
	case policy.ReasonDirectoryRead:
		return fmt.Sprintf("%s: cannot read '%s'; refusing to delete", label, v.Path)
	case policy.ReasonProtectedPath:
		return fmt.Sprintf("%s: '%s' matches protected pattern %q", label, v.Path, v.Pattern)
	default:
		return fmt.Sprintf("%s: '%s'", label, v.Path)
	}
}

// colorize paints the label red when stderr is a terminal; agents
// reading piped output get plain text.
func colorize(s string, w io.Writer) string {
	f, ok := w.(*os.File)
	if !ok {
		return s
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}
