package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/flotilla/internal/git"
)

// branchPrefix namespaces flotilla-managed branches so orphan detection can
// recognize them without consulting the state store.
const branchPrefix = "flotilla/"

// maxSlugAttempts bounds collision retries before giving up.
const maxSlugAttempts = 20

// WorktreeProvider implements Provider using git worktrees, one per
// execution context, all branched from the session base ref.
type WorktreeProvider struct {
	baseDir  string // directory worktrees are created under
	repoPath string // main git repository
	git      git.Runner
	// runnerFor builds a runner rooted at a workspace path; overridable
	// so tests can fake per-workspace status checks.
	runnerFor func(path string) git.Runner
	mu        sync.Mutex
}

// Verify WorktreeProvider implements Provider at compile time.
var _ Provider = (*WorktreeProvider)(nil)

// DefaultBaseDir returns the default directory for flotilla worktrees.
func DefaultBaseDir() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "flotilla", "worktrees")
}

// NewWorktreeProvider creates a WorktreeProvider for the repository at
// repoPath. An empty baseDir falls back to DefaultBaseDir.
func NewWorktreeProvider(baseDir, repoPath string) (*WorktreeProvider, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}

	return &WorktreeProvider{
		baseDir:  baseDir,
		repoPath: repoPath,
		git:      git.NewRunner(repoPath),
		runnerFor: func(path string) git.Runner {
			return git.NewRunner(path)
		},
	}, nil
}

// NewWorktreeProviderWithRunner creates a WorktreeProvider with a custom
// git runner (for testing).
func NewWorktreeProviderWithRunner(baseDir, repoPath string, runner git.Runner) (*WorktreeProvider, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}

	return &WorktreeProvider{
		baseDir:  baseDir,
		repoPath: repoPath,
		git:      runner,
		runnerFor: func(string) git.Runner {
			return runner
		},
	}, nil
}

// CreateWorkspace materializes a worktree for the slug, uniquifying with a
// numeric suffix when the slug's branch or directory already exists.
func (p *WorktreeProvider) CreateWorkspace(baseRef, slug string) (*Workspace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidate := slug
	for attempt := 2; ; attempt++ {
		taken, err := p.slugTaken(candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		if attempt > maxSlugAttempts {
			return nil, fmt.Errorf("no free workspace slug for %q after %d attempts", slug, maxSlugAttempts)
		}
		candidate = fmt.Sprintf("%s-%d", slug, attempt)
	}

	branch := branchPrefix + candidate
	path := filepath.Join(p.baseDir, candidate)

	if err := p.git.WorktreeAddNewBranch(path, branch, baseRef); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", candidate, err)
	}

	return &Workspace{
		Path:      path,
		BranchRef: branch,
		Slug:      candidate,
		CreatedAt: time.Now(),
	}, nil
}

// slugTaken reports whether a slug's branch or directory already exists.
func (p *WorktreeProvider) slugTaken(slug string) (bool, error) {
	exists, err := p.git.BranchExists(branchPrefix + slug)
	if err != nil {
		return false, fmt.Errorf("check branch for slug %s: %w", slug, err)
	}
	if exists {
		return true, nil
	}
	if _, err := os.Stat(filepath.Join(p.baseDir, slug)); err == nil {
		return true, nil
	}
	return false, nil
}

// HasUncommittedChanges reports whether the workspace has local changes.
func (p *WorktreeProvider) HasUncommittedChanges(path string) (bool, error) {
	wtGit := p.runnerFor(path)
	dirty, err := wtGit.HasChanges()
	if err != nil {
		return false, fmt.Errorf("check workspace %s: %w", path, err)
	}
	return dirty, nil
}

// Merge integrates branchRef into targetRef in the main repository.
// A branch with no commits over the target is a successful no-op. Conflicts
// abort the merge and return a MergeConflictError with the workspace intact.
func (p *WorktreeProvider) Merge(branchRef, targetRef string) (*MergeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ahead, err := p.git.CommitsAhead(branchRef, targetRef)
	if err != nil {
		return nil, fmt.Errorf("count commits on %s: %w", branchRef, err)
	}
	if ahead == 0 {
		return &MergeResult{NoOp: true}, nil
	}

	current, err := p.git.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("resolve current branch: %w", err)
	}
	if current != targetRef {
		if err := p.git.CheckoutBranch(targetRef); err != nil {
			return nil, fmt.Errorf("checkout %s: %w", targetRef, err)
		}
		defer func() {
			// Best effort: return to where the operator was.
			_ = p.git.CheckoutBranch(current)
		}()
	}

	msg := fmt.Sprintf("Merge %s", branchRef)
	if err := p.git.MergeNoFFMessage(branchRef, msg); err != nil {
		conflicted, cErr := p.git.HasConflicts()
		if cErr == nil && conflicted {
			files, _ := p.git.ConflictedFiles()
			_ = p.git.MergeAbort()
			return nil, &MergeConflictError{
				BranchRef: branchRef,
				TargetRef: targetRef,
				Files:     files,
			}
		}
		return nil, fmt.Errorf("merge %s into %s: %w", branchRef, targetRef, err)
	}

	return &MergeResult{Merged: true}, nil
}

// Remove tears down the worktree and deletes its branch. With force false,
// a dirty workspace is left untouched and DirtyWorkspaceError returned.
func (p *WorktreeProvider) Remove(path, branchRef string, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force {
		wtGit := p.runnerFor(path)
		dirty, err := wtGit.HasChanges()
		if err == nil && dirty {
			files, _ := wtGit.ChangedFiles()
			return &DirtyWorkspaceError{Path: path, Files: files}
		}
	}

	if err := p.git.WorktreeRemove(path, force); err != nil {
		// The directory may already be gone; fall back to direct removal
		// so the branch cleanup below still runs.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("remove workspace %s: %w", path, err)
		}
	}

	if branchRef != "" {
		if err := p.git.DeleteBranch(branchRef); err != nil {
			return fmt.Errorf("delete branch %s: %w", branchRef, err)
		}
	}

	return nil
}

// List returns all flotilla-managed worktrees known to git.
func (p *WorktreeProvider) List() ([]*Workspace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	output, err := p.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	all := parseWorktreeList(output)
	var ours []*Workspace
	for _, ws := range all {
		if ws.Path == p.repoPath {
			continue
		}
		if strings.HasPrefix(ws.BranchRef, branchPrefix) {
			ours = append(ours, ws)
		}
	}
	return ours, nil
}

// Prune removes references to worktrees that no longer exist on disk.
func (p *WorktreeProvider) Prune() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.git.WorktreePruneExpireNow(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}

// BaseDir returns the directory worktrees are created under.
func (p *WorktreeProvider) BaseDir() string {
	return p.baseDir
}

// parseWorktreeList parses the output of 'git worktree list --porcelain'.
func parseWorktreeList(output string) []*Workspace {
	var workspaces []*Workspace
	var current *Workspace

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current != nil {
				workspaces = append(workspaces, current)
				current = nil
			}
			continue
		}

		if strings.HasPrefix(line, "worktree ") {
			current = &Workspace{Path: strings.TrimPrefix(line, "worktree ")}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			branchRef := strings.TrimPrefix(line, "branch ")
			current.BranchRef = strings.TrimPrefix(branchRef, "refs/heads/")
			current.Slug = strings.TrimPrefix(current.BranchRef, branchPrefix)
		}
	}

	if current != nil {
		workspaces = append(workspaces, current)
	}

	return workspaces
}
