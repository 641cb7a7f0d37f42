package core

// ConceptNode is one curriculum concept in the knowledge graph. Nodes and
// prerequisite edges are append-only from the orchestration core's point of
// view; structural edits belong to the out-of-scope ingestion/builder side.
type ConceptNode struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	TopicArea string   `json:"topic_area"`
	// Prereqs lists prerequisite concept ids (edge direction
	// prerequisite → dependent).
	Prereqs []string `json:"prereqs,omitempty"`
}

// Edge is one directed prerequisite edge (From must be mastered before To
// is taught without a gap).
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Subgraph is a read snapshot of a set of concept nodes plus the
// prerequisite edges between them.
type Subgraph struct {
	Nodes []ConceptNode `json:"nodes"`
	Edges []Edge        `json:"edges"`
}

// GraphViewNode is one node of a per-student visualization export. Color is
// derived 1:1 from the student's mastery state of the node.
type GraphViewNode struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	TopicArea string       `json:"topic_area"`
	State     MasteryState `json:"state"`
	Color     string       `json:"color"`
}

// GraphView is the node/edge list consumed by the frontend graph renderer.
type GraphView struct {
	Nodes []GraphViewNode `json:"nodes"`
	Edges []Edge          `json:"edges"`
}
