// Package host abstracts the process-hosting service that runs executor
// subprocesses for execution contexts. The engine never talks to a
// terminal multiplexer directly; it goes through the Host interface so
// tests and alternative hosts can substitute implementations.
package host

// Host defines the process-hosting collaborator interface.
type Host interface {
	// Create starts a hosted subprocess shell rooted at workdir and
	// returns an opaque context ID for subsequent calls.
	Create(workdir string) (string, error)
	// SendInput delivers literal text to the context's input buffer.
	SendInput(contextID, text string) error
	// CaptureOutput returns the last tailLines lines of captured output.
	// A tailLines of zero captures the visible buffer.
	CaptureOutput(contextID string, tailLines int) (string, error)
	// Exists reports whether the hosted context is still live.
	Exists(contextID string) bool
	// Kill terminates the hosted context. Killing a context that is
	// already gone is not an error.
	Kill(contextID string) error
}
