package runtime

import (
	"context"
	"sync"
)

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// SessionLocks serializes runs on the same session. Runs on different
// sessions never wait on each other.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock waits for the session lease or for ctx to end. The returned release
// func must be called exactly once; extra calls are ignored.
func (s *SessionLocks) Lock(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.unref(sessionID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.unref(sessionID, l)
		})
	}, nil
}

func (s *SessionLocks) unref(sessionID string, l *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionID)
	}
}

// Len returns the number of sessions currently held or waited on.
func (s *SessionLocks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
