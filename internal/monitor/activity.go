package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ActivityWatcher tracks transcript-file writes per workspace so the
// engine can stamp last-output times from filesystem events instead of
// relying solely on poll-time output diffing. Transcript artifacts also
// drive resumability classification during recovery.
type ActivityWatcher struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time // workspace path -> last transcript write
	onWrite  func(workspacePath string, at time.Time)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewActivityWatcher starts a watcher. onWrite, if non-nil, is invoked
// for every observed transcript write; callers typically persist the
// timestamp through the state store. A failed fsnotify init is not
// fatal: the watcher degrades to recording nothing and the poller's
// output diffing remains the source of truth.
func NewActivityWatcher(onWrite func(workspacePath string, at time.Time)) *ActivityWatcher {
	aw := &ActivityWatcher{
		lastSeen: make(map[string]time.Time),
		onWrite:  onWrite,
		done:     make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return aw
	}
	aw.watcher = watcher
	go aw.watchWrites()

	return aw
}

// Watch registers a workspace's transcript directory for events.
func (aw *ActivityWatcher) Watch(workspacePath string) error {
	if aw.watcher == nil {
		return nil
	}
	dir := TranscriptDir(workspacePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return aw.watcher.Add(dir)
}

// Unwatch stops tracking a workspace.
func (aw *ActivityWatcher) Unwatch(workspacePath string) {
	if aw.watcher != nil {
		aw.watcher.Remove(TranscriptDir(workspacePath))
	}
	aw.mu.Lock()
	delete(aw.lastSeen, workspacePath)
	aw.mu.Unlock()
}

// LastActivity returns when the workspace's transcript was last written,
// or the zero time if no write has been observed.
func (aw *ActivityWatcher) LastActivity(workspacePath string) time.Time {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	return aw.lastSeen[workspacePath]
}

// Close stops the watcher.
func (aw *ActivityWatcher) Close() {
	close(aw.done)
	if aw.watcher != nil {
		aw.watcher.Close()
	}
}

// watchWrites records transcript write events per workspace.
func (aw *ActivityWatcher) watchWrites() {
	for {
		select {
		case <-aw.done:
			return
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Events arrive for files inside <workspace>/.flotilla.
			workspace := filepath.Dir(filepath.Dir(event.Name))
			now := time.Now()
			aw.mu.Lock()
			aw.lastSeen[workspace] = now
			aw.mu.Unlock()
			if aw.onWrite != nil {
				aw.onWrite(workspace, now)
			}
		case <-aw.watcher.Errors:
			// Keep watching.
		}
	}
}

// TranscriptDir is where a context's transcript artifacts live inside
// its workspace.
func TranscriptDir(workspacePath string) string {
	return filepath.Join(workspacePath, ".flotilla")
}

// TranscriptPath is the durable transcript artifact for a context. Its
// presence after a crash marks the agent resumable.
func TranscriptPath(workspacePath string) string {
	return filepath.Join(TranscriptDir(workspacePath), "transcript.log")
}

// HasTranscript reports whether a workspace retains a transcript artifact.
func HasTranscript(workspacePath string) bool {
	info, err := os.Stat(TranscriptPath(workspacePath))
	return err == nil && !info.IsDir()
}
