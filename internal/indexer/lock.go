package indexer

import "sync/atomic"

// runLock admits one indexing run at a time and remembers which collection
// that run is writing. The zero value is unlocked.
type runLock struct {
	active atomic.Pointer[string]
}

// acquire claims the lock for collection, false if a run is already active
func (l *runLock) acquire(collection string) bool {
	return l.active.CompareAndSwap(nil, &collection)
}

func (l *runLock) release() {
	l.active.Store(nil)
}

// current returns the collection of the active run
func (l *runLock) current() (string, bool) {
	if p := l.active.Load(); p != nil {
		return *p, true
	}
	return "", false
}

// Running reports the collection being indexed, if a run is active
func (idx *Indexer) Running() (string, bool) {
	return idx.lock.current()
}
