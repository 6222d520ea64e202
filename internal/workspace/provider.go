// Package workspace provides isolated per-node workspaces backed by git
// worktrees. The orchestration engine treats it as an abstract collaborator
// so tests can substitute a fake.
package workspace

import "time"

// Workspace is an isolated working directory paired with a branch-like
// identifier, materialized for one execution context.
type Workspace struct {
	// Path is the absolute path to the workspace directory.
	Path string
	// BranchRef is the branch created for this workspace.
	BranchRef string
	// Slug is the identifier the workspace was requested under, after
	// any collision uniquifying.
	Slug string
	// CreatedAt is when the workspace was materialized.
	CreatedAt time.Time
}

// MergeResult describes the outcome of reconciling a workspace branch
// into a target ref.
type MergeResult struct {
	// Merged is true when a merge commit was created.
	Merged bool
	// NoOp is true when the branch had no new commits over the target.
	NoOp bool
}

// Provider defines the VCS-isolation collaborator interface.
type Provider interface {
	// CreateWorkspace materializes an isolated workspace rooted at baseRef
	// under the requested slug. On slug collision the slug is uniquified
	// with a numeric suffix rather than failing.
	CreateWorkspace(baseRef, slug string) (*Workspace, error)
	// HasUncommittedChanges reports whether the workspace has local
	// modifications that are not committed.
	HasUncommittedChanges(path string) (bool, error)
	// Merge integrates branchRef into targetRef. A branch with no new
	// commits is a successful no-op. On conflict the merge is aborted,
	// the workspace preserved, and a MergeConflictError returned.
	Merge(branchRef, targetRef string) (*MergeResult, error)
	// Remove tears down the workspace and deletes its branch. With force
	// false, a dirty workspace returns DirtyWorkspaceError without side
	// effects.
	Remove(path, branchRef string, force bool) error
	// List returns all workspaces this provider manages.
	List() ([]*Workspace, error)
	// Prune drops stale bookkeeping for workspaces removed out-of-band.
	Prune() error
}
