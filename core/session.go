package core

import (
	"sync"
	"time"
)

// ResponseStyle is the student's preferred explanation length.
type ResponseStyle string

const (
	StyleConcise  ResponseStyle = "concise"
	StyleBalanced ResponseStyle = "balanced"
	StyleDetailed ResponseStyle = "detailed"
)

// Difficulty is the student's difficulty override. DifficultyAuto defers to
// whatever the memory profile suggests.
type Difficulty string

const (
	DifficultyAuto         Difficulty = "auto"
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Turn is one entry of the session transcript.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "student" or "tutor"
	Agent     string    `json:"agent,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Question is an outstanding assessment question awaiting the student's
// answer. It lives on the session so the next message can be routed to
// scoring.
type Question struct {
	ConceptID      string   `json:"concept_id"`
	Text           string   `json:"text"`
	ExpectedPoints []string `json:"expected_points,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
}

// Session is the per-student conversational container. One session exists
// per student id (stable across devices; sharing the id shares progress,
// which is the entire identity model). Created lazily on the first message
// from an unseen id and never explicitly destroyed; durable learning state
// lives in the memory gateway and the knowledge graph, not here.
//
// It is safe for concurrent access; Clone returns a deep copy so the
// orchestrator can work on a snapshot without holding any lock across
// external calls.
type Session struct {
	StudentID string `json:"student_id"`

	// CurrentConcept points at the concept most recently taught or
	// assessed. Empty means no concept yet.
	CurrentConcept string `json:"current_concept,omitempty"`

	// PendingFollowup is set after a brief answer offered "want to know
	// more?"; PendingConcept remembers which concept the offer was about.
	PendingFollowup bool   `json:"pending_followup"`
	PendingConcept  string `json:"pending_concept,omitempty"`

	// PendingQuestion is the assessment question awaiting an answer, nil
	// when none is outstanding.
	PendingQuestion *Question `json:"pending_question,omitempty"`

	Style      ResponseStyle `json:"style"`
	Difficulty Difficulty    `json:"difficulty"`

	Transcript []Turn    `json:"transcript"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`

	mu sync.RWMutex
}

// NewSession creates a session for the given student id with default
// preferences.
func NewSession(studentID string) *Session {
	now := time.Now().UTC()
	return &Session{
		StudentID:  studentID,
		Style:      StyleBalanced,
		Difficulty: DifficultyAuto,
		Transcript: []Turn{},
		Created:    now,
		Updated:    now,
	}
}

// AppendTurn appends a transcript turn and bumps the Updated timestamp.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	s.Transcript = append(s.Transcript, t)
	s.Updated = time.Now().UTC()
}

// LastTurns returns up to n most recent transcript turns (defensive copy).
func (s *Session) LastTurns(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.Transcript) {
		n = len(s.Transcript)
	}
	out := make([]Turn, n)
	copy(out, s.Transcript[len(s.Transcript)-n:])
	return out
}

// SetConcept updates the current concept pointer.
func (s *Session) SetConcept(conceptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentConcept = conceptID
	s.Updated = time.Now().UTC()
}

// OfferFollowup records that a brief answer offered a deeper explanation of
// the given concept.
func (s *Session) OfferFollowup(conceptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingFollowup = true
	s.PendingConcept = conceptID
	s.Updated = time.Now().UTC()
}

// ClearFollowup resolves the pending followup, returning the concept it
// referred to.
func (s *Session) ClearFollowup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	concept := s.PendingConcept
	s.PendingFollowup = false
	s.PendingConcept = ""
	s.Updated = time.Now().UTC()
	return concept
}

// AskQuestion records an outstanding assessment question.
func (s *Session) AskQuestion(q *Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingQuestion = q
	s.Updated = time.Now().UTC()
}

// TakeQuestion removes and returns the outstanding question, nil if none.
func (s *Session) TakeQuestion() *Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.PendingQuestion
	s.PendingQuestion = nil
	s.Updated = time.Now().UTC()
	return q
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		StudentID:       s.StudentID,
		CurrentConcept:  s.CurrentConcept,
		PendingFollowup: s.PendingFollowup,
		PendingConcept:  s.PendingConcept,
		Style:           s.Style,
		Difficulty:      s.Difficulty,
		Transcript:      make([]Turn, len(s.Transcript)),
		Created:         s.Created,
		Updated:         s.Updated,
	}
	copy(clone.Transcript, s.Transcript)
	if s.PendingQuestion != nil {
		q := *s.PendingQuestion
		q.ExpectedPoints = append([]string(nil), s.PendingQuestion.ExpectedPoints...)
		clone.PendingQuestion = &q
	}
	return clone
}

// SessionStore persists sessions keyed by student id.
type SessionStore interface {
	// Get returns the session for the student, creating one lazily for an
	// unseen id. The returned session is a clone; mutations are persisted
	// with Save.
	Get(studentID string) (*Session, error)
	// Save stores a snapshot of the session.
	Save(sess *Session) error
}
