package workspace

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ShayCichocki/flotilla/internal/git"
)

// fakeRunner implements git.Runner in memory for provider tests.
type fakeRunner struct {
	branches   map[string]bool
	worktrees  map[string]string // path -> branch
	dirty      bool
	conflicts  bool
	ahead      int
	current    string
	mergeCalls []string
	aborted    bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		branches:  make(map[string]bool),
		worktrees: make(map[string]string),
		current:   "main",
	}
}

func (f *fakeRunner) CurrentBranch() (string, error)      { return f.current, nil }
func (f *fakeRunner) BranchExists(name string) (bool, error) { return f.branches[name], nil }
func (f *fakeRunner) DeleteBranch(name string) error {
	delete(f.branches, name)
	return nil
}
func (f *fakeRunner) CheckoutBranch(name string) error {
	f.current = name
	return nil
}
func (f *fakeRunner) Status() (string, error) {
	if f.dirty {
		return " M file.go", nil
	}
	return "", nil
}
func (f *fakeRunner) HasChanges() (bool, error)          { return f.dirty, nil }
func (f *fakeRunner) CommitsAhead(string, string) (int, error) { return f.ahead, nil }
func (f *fakeRunner) RecentCommits(string, int) ([]string, error) {
	return []string{"abc1234 initial"}, nil
}
func (f *fakeRunner) ChangedFiles() ([]string, error) {
	if f.dirty {
		return []string{"file.go"}, nil
	}
	return nil, nil
}
func (f *fakeRunner) ConflictedFiles() ([]string, error) {
	if f.conflicts {
		return []string{"clash.go"}, nil
	}
	return nil, nil
}
func (f *fakeRunner) MergeNoFFMessage(branch, _ string) error {
	f.mergeCalls = append(f.mergeCalls, branch)
	if f.conflicts {
		return fmt.Errorf("merge failed")
	}
	return nil
}
func (f *fakeRunner) MergeAbort() error {
	f.aborted = true
	return nil
}
func (f *fakeRunner) HasConflicts() (bool, error) { return f.conflicts, nil }
func (f *fakeRunner) WorktreeAddNewBranch(path, branch, _ string) error {
	if f.branches[branch] {
		return fmt.Errorf("branch %s already exists", branch)
	}
	f.branches[branch] = true
	f.worktrees[path] = branch
	return nil
}
func (f *fakeRunner) WorktreeRemove(path string, _ bool) error {
	delete(f.worktrees, path)
	return nil
}
func (f *fakeRunner) WorktreeListPorcelain() (string, error) {
	out := ""
	for path, branch := range f.worktrees {
		out += fmt.Sprintf("worktree %s\nbranch refs/heads/%s\n\n", path, branch)
	}
	return out, nil
}
func (f *fakeRunner) WorktreePruneExpireNow() error { return nil }
func (f *fakeRunner) Run(...string) (string, error) { return "", nil }

var _ git.Runner = (*fakeRunner)(nil)

func newTestProvider(t *testing.T, runner git.Runner) *WorktreeProvider {
	t.Helper()
	p, err := NewWorktreeProviderWithRunner(t.TempDir(), "/repo", runner)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return p
}

func TestCreateWorkspace(t *testing.T) {
	runner := newFakeRunner()
	p := newTestProvider(t, runner)

	ws, err := p.CreateWorkspace("main", "auth")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	if ws.Slug != "auth" {
		t.Errorf("slug = %q, want %q", ws.Slug, "auth")
	}
	if ws.BranchRef != "flotilla/auth" {
		t.Errorf("branch = %q, want %q", ws.BranchRef, "flotilla/auth")
	}
	if !runner.branches["flotilla/auth"] {
		t.Error("expected branch to be created")
	}
}

// Spec scenario: two creations requesting slug "auth" in one session must
// both succeed, the second under a uniquified slug.
func TestCreateWorkspaceSlugCollision(t *testing.T) {
	runner := newFakeRunner()
	p := newTestProvider(t, runner)

	first, err := p.CreateWorkspace("main", "auth")
	if err != nil {
		t.Fatalf("first CreateWorkspace() error = %v", err)
	}
	second, err := p.CreateWorkspace("main", "auth")
	if err != nil {
		t.Fatalf("second CreateWorkspace() error = %v", err)
	}

	if first.Slug != "auth" {
		t.Errorf("first slug = %q, want %q", first.Slug, "auth")
	}
	if second.Slug != "auth-2" {
		t.Errorf("second slug = %q, want %q", second.Slug, "auth-2")
	}
	if second.BranchRef != "flotilla/auth-2" {
		t.Errorf("second branch = %q, want %q", second.BranchRef, "flotilla/auth-2")
	}
}

func TestRemoveDirtyWorkspace(t *testing.T) {
	runner := newFakeRunner()
	runner.dirty = true
	p := newTestProvider(t, runner)

	err := p.Remove("/tmp/ws", "flotilla/x", false)

	var dirtyErr *DirtyWorkspaceError
	if !errors.As(err, &dirtyErr) {
		t.Fatalf("expected DirtyWorkspaceError, got %v", err)
	}
	if dirtyErr.Path != "/tmp/ws" {
		t.Errorf("error path = %q, want %q", dirtyErr.Path, "/tmp/ws")
	}
	// No side effects: branch must survive.
	if _, ok := runner.branches["flotilla/x"]; ok {
		// Branch was never created in this test; ensure no delete happened
		// by checking the worktree map is untouched too.
		t.Error("unexpected branch mutation")
	}
}

func TestRemoveForceIgnoresDirty(t *testing.T) {
	runner := newFakeRunner()
	runner.dirty = true
	runner.branches["flotilla/x"] = true
	runner.worktrees["/tmp/ws"] = "flotilla/x"
	p := newTestProvider(t, runner)

	if err := p.Remove("/tmp/ws", "flotilla/x", true); err != nil {
		t.Fatalf("Remove(force) error = %v", err)
	}
	if runner.branches["flotilla/x"] {
		t.Error("expected branch deleted")
	}
}

// Spec scenario: merging a branch with no new commits is a successful no-op.
func TestMergeNoNewCommits(t *testing.T) {
	runner := newFakeRunner()
	runner.ahead = 0
	p := newTestProvider(t, runner)

	res, err := p.Merge("flotilla/auth", "main")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !res.NoOp {
		t.Error("expected no-op merge result")
	}
	if len(runner.mergeCalls) != 0 {
		t.Errorf("expected no merge invocation, got %v", runner.mergeCalls)
	}
}

func TestMergeSuccess(t *testing.T) {
	runner := newFakeRunner()
	runner.ahead = 3
	p := newTestProvider(t, runner)

	res, err := p.Merge("flotilla/auth", "main")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !res.Merged {
		t.Error("expected merged result")
	}
	if len(runner.mergeCalls) != 1 || runner.mergeCalls[0] != "flotilla/auth" {
		t.Errorf("merge calls = %v", runner.mergeCalls)
	}
}

func TestMergeConflictAbortsAndPreserves(t *testing.T) {
	runner := newFakeRunner()
	runner.ahead = 1
	runner.conflicts = true
	p := newTestProvider(t, runner)

	_, err := p.Merge("flotilla/auth", "main")

	var conflictErr *MergeConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected MergeConflictError, got %v", err)
	}
	if !runner.aborted {
		t.Error("expected merge abort")
	}
	if len(conflictErr.Files) != 1 || conflictErr.Files[0] != "clash.go" {
		t.Errorf("conflict files = %v", conflictErr.Files)
	}
}

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /home/user/project
branch refs/heads/main

worktree /home/user/.cache/flotilla/worktrees/auth
branch refs/heads/flotilla/auth

worktree /home/user/.cache/flotilla/worktrees/auth-2
branch refs/heads/flotilla/auth-2
`

	workspaces := parseWorktreeList(output)
	if len(workspaces) != 3 {
		t.Fatalf("expected 3 workspaces, got %d", len(workspaces))
	}
	if workspaces[1].Slug != "auth" {
		t.Errorf("workspaces[1].Slug = %q, want %q", workspaces[1].Slug, "auth")
	}
	if workspaces[2].BranchRef != "flotilla/auth-2" {
		t.Errorf("workspaces[2].BranchRef = %q", workspaces[2].BranchRef)
	}
}

func TestListFiltersForeignWorktrees(t *testing.T) {
	runner := newFakeRunner()
	runner.worktrees["/repo"] = "main"
	runner.worktrees["/tmp/auth"] = "flotilla/auth"
	runner.worktrees["/tmp/other"] = "feature/unrelated"
	p := newTestProvider(t, runner)

	list, err := p.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Slug != "auth" {
		t.Errorf("expected only flotilla workspace, got %+v", list)
	}
}
