// Package git provides an interface for the git operations flotilla needs
// to isolate and reconcile agent workspaces.
package git

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(name string) error
}

// StatusOperations defines the interface for git status and history queries.
type StatusOperations interface {
	// Status returns the output of git status --porcelain.
	Status() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// CommitsAhead returns the number of commits on ref not reachable
	// from base (git rev-list --count base..ref).
	CommitsAhead(ref, base string) (int, error)
	// RecentCommits returns up to n one-line commit subjects on ref.
	RecentCommits(ref string, n int) ([]string, error)
	// ChangedFiles returns files with uncommitted changes.
	ChangedFiles() ([]string, error)
	// ConflictedFiles returns files with unmerged changes.
	ConflictedFiles() ([]string, error)
}

// MergeOperations defines the interface for git merge operations.
type MergeOperations interface {
	// MergeNoFFMessage merges a branch into the current branch with
	// --no-ff and a custom message.
	MergeNoFFMessage(branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort() error
	// HasConflicts returns true if the working tree has merge conflicts.
	HasConflicts() (bool, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree with a new branch rooted
	// at the given base ref (git worktree add -b <branch> <path> <base>).
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove removes the worktree, optionally with force.
	WorktreeRemove(path string, force bool) error
	// WorktreeListPorcelain returns raw porcelain output for parsing.
	WorktreeListPorcelain() (string, error)
	// WorktreePruneExpireNow prunes stale worktree entries immediately.
	WorktreePruneExpireNow() error
}

// Runner defines the complete interface for git operations. Consumers
// should prefer the focused interfaces when possible.
type Runner interface {
	BranchOperations
	StatusOperations
	MergeOperations
	WorktreeOperations
	// Run executes an arbitrary git command and returns its output.
	Run(args ...string) (string, error)
}
