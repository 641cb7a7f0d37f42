package core

import "context"

// Passage is one retrieved supporting text snippet, ordered by descending
// relevance score. SourceID identifies the ingested document it came from.
type Passage struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	SourceID string  `json:"source_id"`
}

// Fact is one recalled memory item. The memory provider decides salience
// and retention; the core treats content as opaque text.
type Fact struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// GraphStore is the knowledge graph contract. The curriculum graph (nodes
// and prerequisite edges) is logically global and append-only; mastery
// state is keyed by (student id, concept id) so two students never share
// progress. Implementations must reject transitions outside the mastery
// state machine with ErrInvalidTransition.
type GraphStore interface {
	// GetSubgraph returns the nodes for the given concept ids plus the
	// prerequisite edges between them.
	GetSubgraph(ctx context.Context, conceptIDs []string) (*Subgraph, error)

	// GetState returns the student's mastery state for the concept,
	// MasteryUnstudied when never touched.
	GetState(ctx context.Context, studentID, conceptID string) (MasteryState, error)

	// SetState commits a mastery transition for (student, concept). A
	// same-state write is a legal no-op. Write failures are fatal to the
	// calling turn and must never be silently retried.
	SetState(ctx context.Context, studentID, conceptID string, next MasteryState) error

	// ResolveConcept matches a concept name (case-insensitive) and returns
	// all nodes that match; more than one means the name is ambiguous
	// across topic areas.
	ResolveConcept(ctx context.Context, name string) ([]ConceptNode, error)

	// Prerequisites returns the direct prerequisite nodes of a concept.
	Prerequisites(ctx context.Context, conceptID string) ([]ConceptNode, error)

	// PrerequisiteChain returns the transitive prerequisites of a concept
	// ordered nearest-first (fewest hops from the concept).
	PrerequisiteChain(ctx context.Context, conceptID string) ([]ConceptNode, error)

	// NextConcept picks an unmastered concept all of whose prerequisites
	// the student has mastered, in prerequisite-graph topological order.
	// Returns nil when the curriculum is exhausted.
	NextConcept(ctx context.Context, studentID string) (*ConceptNode, error)

	// Visualization exports the student's view of the graph with per-node
	// colors derived 1:1 from mastery state.
	Visualization(ctx context.Context, studentID string) (*GraphView, error)
}

// MemoryGateway is the shared-memory contract that lets three independent
// agents behave as one continuous tutor. One store exists per student id;
// all agents read and write it through the same two operations. What is
// actually retained is the provider's business; the core never inspects
// or controls the internal representation.
type MemoryGateway interface {
	// Remember hands a fact to the provider.
	Remember(ctx context.Context, studentID, fact string) error
	// Recall returns facts relevant to the query, most relevant first.
	Recall(ctx context.Context, studentID, query string, limit int) ([]Fact, error)
}

// Retriever is the retrieval service contract: ranked supporting passages
// for a query, optionally filtered to a topic area (empty filter means
// all). Stateless from the orchestrator's perspective; no ordering
// guarantee beyond descending score.
type Retriever interface {
	Query(ctx context.Context, text, topicFilter string, topK int) ([]Passage, error)
}
