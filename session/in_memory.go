package session

import (
	"sync"

	"github.com/mosaicedu/mosaic/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map keyed by student id. It is safe for concurrent access and
// best suited for tests or single-node demo servers. Each returned
// session is a clone, so callers never mutate store internals and the
// store never holds a lock while agents work on a session.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns a clone of the student's session, creating it lazily on
// first contact.
func (s *InMemoryStore) Get(studentID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[studentID]
	if !ok {
		sess = core.NewSession(studentID)
		s.sessions[studentID] = sess
	}
	return sess.Clone(), nil
}

// Save stores a clone of the provided session snapshot. Last writer wins;
// turns for one student are serialized upstream.
func (s *InMemoryStore) Save(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.StudentID] = sess.Clone()
	return nil
}
