package session

import (
	"errors"
	"sync"
)

var (
	// ErrSessionNotFound is returned when no session exists for a call SID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned on any mutation of an ENDED session.
	ErrSessionClosed = errors.New("session closed")
)

// Store is the process-wide registry of active call sessions, keyed by call
// SID. It is the only mutable state shared across concurrent calls; all other
// state is partitioned per session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the ACTIVE session for callID, creating it if absent.
// Creation is atomic with respect to concurrent first utterances: exactly one
// session is ever created per call SID. The second return value reports
// whether a new session was created.
func (s *Store) GetOrCreate(callID, callerPhone string) (*Session, bool) {
	s.mu.RLock()
	if sess, ok := s.sessions[callID]; ok {
		s.mu.RUnlock()
		return sess, false
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock: another goroutine may have won the race.
	if sess, ok := s.sessions[callID]; ok {
		return sess, false
	}
	sess := New(callID, callerPhone)
	s.sessions[callID] = sess
	return sess, true
}

// Get returns the ACTIVE session for callID.
func (s *Store) Get(callID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// AppendTurn appends a turn to the session for callID.
func (s *Store) AppendTurn(callID string, turn Turn) error {
	sess, err := s.Get(callID)
	if err != nil {
		return err
	}
	return sess.Append(turn)
}

// End marks the session ENDED and releases it from the active store. The
// ended session is returned so the caller can flush it to the audit sink.
// A later GetOrCreate for the same call SID starts a fresh session.
func (s *Store) End(callID string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[callID]
	if ok {
		delete(s.sessions, callID)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := sess.End(); err != nil {
		return nil, err
	}
	return sess, nil
}

// ActiveCount returns the number of active sessions.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveIDs returns the call SIDs of all active sessions.
func (s *Store) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
