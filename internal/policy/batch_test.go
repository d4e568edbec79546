package policy

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/saferm/saferm/internal/gitstatus"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestProcessMissingPath(t *testing.T) {
	root := projectDir(t)
	c := NewCoordinator(newTestEngine(t, true, root, nil, nil), root, quietLogger())

	res := c.Process([]string{"ghost.txt"}, Options{})
	if len(res) != 1 {
		t.Fatalf("got %d results", len(res))
	}
	if res[0].OpErr == nil || res[0].OpErr.Kind != OpNotFound {
		t.Fatalf("want OpNotFound, got %+v", res[0])
	}
}

func TestProcessMissingPathForce(t *testing.T) {
	root := projectDir(t)
	c := NewCoordinator(newTestEngine(t, true, root, nil, nil), root, quietLogger())

	res := c.Process([]string{"ghost.txt"}, Options{Force: true})
	if !res[0].Skipped {
		t.Fatalf("want skip under --force, got %+v", res[0])
	}
}

func TestProcessDirectoryNeedsRecursive(t *testing.T) {
	root := projectDir(t)
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(newTestEngine(t, true, root, nil, nil), root, quietLogger())

	res := c.Process([]string{"sub"}, Options{})
	if res[0].OpErr == nil || res[0].OpErr.Kind != OpIsDirectory {
		t.Fatalf("want OpIsDirectory, got %+v", res[0])
	}
}

func TestProcessBlockBeforeExistenceCheck(t *testing.T) {
	// A missing path outside the project must report the block, not
	// "no such file": existence is not disclosed beyond the boundary.
	root := projectDir(t)
	c := NewCoordinator(newTestEngine(t, true, root, nil, nil), root, quietLogger())

	res := c.Process([]string{"/nonexistent-outside/f.txt"}, Options{Force: true})
	if !res[0].Blocked() {
		t.Fatalf("want block, got %+v", res[0])
	}
	if res[0].Verdict.Reason != ReasonOutsideProject {
		t.Errorf("Reason = %v, want outside-project", res[0].Verdict.Reason)
	}
}

func TestProcessRecursiveCleanTree(t *testing.T) {
	root := projectDir(t)
	a := filepath.Join(root, "sub", "a.txt")
	b := filepath.Join(root, "sub", "deep", "b.txt")
	writeFile(t, a)
	writeFile(t, b)

	statuses := stubStatuses{a: gitstatus.Clean, b: gitstatus.Clean}
	c := NewCoordinator(newTestEngine(t, false, root, nil, statuses), root, quietLogger())

	res := c.Process([]string{"sub"}, Options{Recursive: true})
	if !res[0].Verdict.Allowed {
		t.Fatalf("clean tree must be allowed, got %+v", res[0].Verdict)
	}
}

func TestProcessRecursiveDirtyDescendantBlocksWhole(t *testing.T) {
	root := projectDir(t)
	clean := filepath.Join(root, "sub", "clean.txt")
	writeFile(t, clean)
	dirty := filepath.Join(root, "sub", "deep", "dirty.txt")
	writeFile(t, dirty)

	statuses := stubStatuses{clean: gitstatus.Clean, dirty: gitstatus.Modified}
	c := NewCoordinator(newTestEngine(t, false, root, nil, statuses), root, quietLogger())

	res := c.Process([]string{"sub"}, Options{Recursive: true})
	if res[0].Verdict.Allowed {
		t.Fatal("one dirty descendant must block the whole directory")
	}
	if res[0].Verdict.Reason != ReasonUncommittedChange {
		t.Errorf("Reason = %v", res[0].Verdict.Reason)
	}
	if res[0].Verdict.Path != dirty {
		t.Errorf("block path = %q, want the dirty descendant %q", res[0].Verdict.Path, dirty)
	}
}

func TestProcessRecursiveIgnoredDirSkipsDescent(t *testing.T) {
	root := projectDir(t)
	sub := filepath.Join(root, "node_modules")
	// The descendant would be dirty if consulted; the ignored directory
	// status must short-circuit before any descent.
	writeFile(t, filepath.Join(sub, "dep", "index.js"))

	statuses := stubStatuses{
		sub:                                   gitstatus.Ignored,
		filepath.Join(sub, "dep", "index.js"): gitstatus.Modified,
	}
	c := NewCoordinator(newTestEngine(t, false, root, nil, statuses), root, quietLogger())

	res := c.Process([]string{"node_modules"}, Options{Recursive: true})
	if !res[0].Verdict.Allowed {
		t.Fatalf("ignored directory must be allowed wholesale, got %+v", res[0].Verdict)
	}
}

func TestProcessRecursiveBypassedDirSkipsDescent(t *testing.T) {
	root := projectDir(t)
	sub := filepath.Join(root, "trusted")
	writeFile(t, filepath.Join(sub, "anything.txt"))

	rules := &RuleSet{rules: []AllowedRule{{Dir: sub, Recursive: true}}}
	statuses := stubStatuses{filepath.Join(sub, "anything.txt"): gitstatus.Modified}
	c := NewCoordinator(newTestEngine(t, false, root, rules, statuses), root, quietLogger())

	res := c.Process([]string{"trusted"}, Options{Recursive: true})
	if !res[0].Verdict.Allowed || !res[0].Verdict.Bypassed {
		t.Fatalf("bypassed directory is trusted wholesale, got %+v", res[0].Verdict)
	}
}

func TestProcessUnreadableDirBlocks(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind root")
	}
	root := projectDir(t)
	sub := filepath.Join(root, "sub")
	writeFile(t, filepath.Join(sub, "locked", "f.txt"))
	locked := filepath.Join(sub, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c := NewCoordinator(newTestEngine(t, false, root, nil, stubStatuses{}), root, quietLogger())

	res := c.Process([]string{"sub"}, Options{Recursive: true})
	if res[0].Verdict.Allowed {
		t.Fatal("unverifiable subtree must be blocked")
	}
	if res[0].Verdict.Reason != ReasonDirectoryRead {
		t.Errorf("Reason = %v, want directory-read-error", res[0].Verdict.Reason)
	}
}

func TestProcessIndependentVerdictsPerPath(t *testing.T) {
	root := projectDir(t)
	writeFile(t, filepath.Join(root, "ok.txt"))

	c := NewCoordinator(newTestEngine(t, true, root, nil, nil), root, quietLogger())

	res := c.Process([]string{"ok.txt", "/etc/passwd", "missing.txt"}, Options{})
	if len(res) != 3 {
		t.Fatalf("got %d results, want 3", len(res))
	}
	if !res[0].Verdict.Allowed {
		t.Errorf("ok.txt: %+v", res[0].Verdict)
	}
	if !res[1].Blocked() {
		t.Errorf("/etc/passwd must be blocked: %+v", res[1])
	}
	if res[2].OpErr == nil || res[2].OpErr.Kind != OpNotFound {
		t.Errorf("missing.txt: %+v", res[2])
	}
}

// strictRepoCoordinator builds a repository with sub/a.txt and
// sub/deep/b.txt committed and wires a coordinator through the real
// oracle under the strict policy.
func strictRepoCoordinator(t *testing.T) (string, *Coordinator) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := projectDir(t)
	gitRun := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	gitRun("init", "-q")
	gitRun("config", "user.email", "t@example.com")
	gitRun("config", "user.name", "t")
	writeFile(t, filepath.Join(root, "sub", "a.txt"))
	writeFile(t, filepath.Join(root, "sub", "deep", "b.txt"))
	gitRun("add", ".")
	gitRun("commit", "-q", "-m", "init")

	o := gitstatus.Open(root, quietLogger())
	if !o.InRepo() {
		t.Fatal("repository not detected")
	}
	if err := o.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return root, NewCoordinator(newTestEngine(t, false, o.Root(), nil, o), root, quietLogger())
}

func TestProcessStrictCommittedDirectoryAllowed(t *testing.T) {
	// A fully committed directory never appears in the status scan
	// itself; its verdict must come from the files inside.
	_, c := strictRepoCoordinator(t)

	res := c.Process([]string{"sub"}, Options{Recursive: true})
	if !res[0].Verdict.Allowed {
		t.Fatalf("committed directory must be deletable, got %+v", res[0].Verdict)
	}
}

func TestProcessStrictDirtyFileBlocksDirectory(t *testing.T) {
	root, c := strictRepoCoordinator(t)
	writeFile(t, filepath.Join(root, "sub", "deep", "new.txt"))

	res := c.Process([]string{"sub"}, Options{Recursive: true})
	if res[0].Verdict.Allowed {
		t.Fatal("untracked descendant must block the directory")
	}
	if res[0].Verdict.Reason != ReasonUncommittedChange {
		t.Errorf("Reason = %v", res[0].Verdict.Reason)
	}
}

func TestProcessStrictMissingPath(t *testing.T) {
	// A nonexistent in-project path is a usage outcome, not a security
	// block: silent skip under --force, not-found without it.
	_, c := strictRepoCoordinator(t)

	res := c.Process([]string{"ghost.txt"}, Options{Force: true})
	if !res[0].Skipped {
		t.Fatalf("want skip under --force, got %+v", res[0])
	}

	res = c.Process([]string{"ghost.txt"}, Options{})
	if res[0].OpErr == nil || res[0].OpErr.Kind != OpNotFound {
		t.Fatalf("want OpNotFound, got %+v", res[0])
	}
}

func TestOpErrorMessages(t *testing.T) {
	tests := []struct {
		err  *OpError
		want string
	}{
		{&OpError{Kind: OpNotFound, Path: "a"}, "cannot remove 'a': No such file or directory"},
		{&OpError{Kind: OpIsDirectory, Path: "d"}, "cannot remove 'd': Is a directory (use -r for recursive)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
