package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDegradedRetrieval signals that the retrieval service was
	// unavailable for a turn. It is recovered locally (the solver falls
	// back to graph and memory context) and logged, never surfaced to the
	// student.
	ErrDegradedRetrieval = errors.New("retrieval unavailable")

	// ErrStateWrite signals a failed knowledge-graph mastery write. It is
	// fatal to the turn: a silently lost transition would corrupt the
	// curriculum model's source of truth, so callers must abort rather
	// than retry.
	ErrStateWrite = errors.New("mastery state write failed")

	// ErrUpstreamReasoning signals a failure of the LLM/classifier
	// collaborator after the single simplified-prompt retry. Surfaced to
	// the student as a generic try-again instruction.
	ErrUpstreamReasoning = errors.New("upstream reasoning failure")

	// ErrConceptNotFound is returned by graph stores when a concept id or
	// name has no node.
	ErrConceptNotFound = errors.New("concept not found")

	// ErrInvalidTransition is returned by graph stores when a requested
	// mastery transition is outside the declared state machine edges.
	ErrInvalidTransition = errors.New("invalid mastery transition")
)

// ClarificationError is the recoverable "I need you to rephrase" outcome of
// routing: an unknown or ambiguous concept. It carries the user-facing
// question and mutates no state.
type ClarificationError struct {
	// Prompt is the plain next-step question shown to the student.
	Prompt string
	// Candidates lists the ambiguous matches, if any.
	Candidates []ConceptNode
}

func (e *ClarificationError) Error() string {
	return fmt.Sprintf("clarification needed: %s", e.Prompt)
}

// AsClarification unwraps err into a *ClarificationError if it is one.
func AsClarification(err error) (*ClarificationError, bool) {
	var ce *ClarificationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
