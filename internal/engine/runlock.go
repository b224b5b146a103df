package engine

import "sync"

// runLocks serializes runs per project. The old contract relied on caller
// discipline; making the lock explicit turns a double-submit into a fast
// ErrRunInProgress instead of interleaved file mutations.
type runLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newRunLocks() *runLocks {
	return &runLocks{held: make(map[string]bool)}
}

// acquire returns false if a run is already in flight for the project.
func (l *runLocks) acquire(projectID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[projectID] {
		return false
	}
	l.held[projectID] = true
	return true
}

func (l *runLocks) release(projectID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, projectID)
}
