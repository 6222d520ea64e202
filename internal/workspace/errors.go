package workspace

import "fmt"

// DirtyWorkspaceError indicates a workspace has uncommitted changes and the
// operation was invoked without force. Recoverable: commit manually or
// retry with force.
type DirtyWorkspaceError struct {
	// Path is the workspace directory.
	Path string
	// Files lists the uncommitted paths, when known.
	Files []string
}

// Error returns a human-readable description.
func (e *DirtyWorkspaceError) Error() string {
	if len(e.Files) > 0 {
		return fmt.Sprintf("workspace %s has %d uncommitted changes", e.Path, len(e.Files))
	}
	return fmt.Sprintf("workspace %s has uncommitted changes", e.Path)
}

// MergeConflictError indicates a merge could not complete cleanly. The
// merge is aborted and the workspace preserved for manual resolution.
type MergeConflictError struct {
	// BranchRef is the branch being merged.
	BranchRef string
	// TargetRef is the ref being merged into.
	TargetRef string
	// Files lists the conflicted paths, when known.
	Files []string
}

// Error returns a human-readable description.
func (e *MergeConflictError) Error() string {
	if len(e.Files) > 0 {
		return fmt.Sprintf("merge of %s into %s conflicts in %d files", e.BranchRef, e.TargetRef, len(e.Files))
	}
	return fmt.Sprintf("merge of %s into %s has conflicts", e.BranchRef, e.TargetRef)
}
