package pipeline

import "sync"

// docLocks serialises work on the same document. Entries are dropped once
// nobody holds or waits for them.
type docLocks struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[string]*docLock)}
}

// Lock blocks until docID is free and returns its unlock function.
func (l *docLocks) Lock(docID string) (unlock func()) {
	l.mu.Lock()
	dl := l.locks[docID]
	if dl == nil {
		dl = &docLock{}
		l.locks[docID] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, docID)
		}
		l.mu.Unlock()
	}
}

func (l *docLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
