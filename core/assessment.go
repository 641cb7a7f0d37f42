package core

// AssessmentResult is the ephemeral outcome of scoring one answer. The
// pass verdict is derived from the configured threshold and never persisted
// on the graph node; only the resulting mastery state is.
type AssessmentResult struct {
	ConceptID string `json:"concept_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Score     int    `json:"score"` // clamped to [0,100]
	Rationale string `json:"rationale"`
	Passed    bool   `json:"passed"`
}

// NextAction is the feedback agent's routing decision after a diagnosis.
type NextAction string

const (
	// ActionAdvance moves on to the next unmastered concept whose
	// prerequisites are all mastered.
	ActionAdvance NextAction = "advance"
	// ActionReTeach routes back to the solver for a full explanation of
	// the diagnosis target (the concept itself, or an unmet prerequisite
	// when the blocker lies upstream).
	ActionReTeach NextAction = "re_teach"
)

// Diagnosis is the feedback agent's verdict: the committed mastery
// transition, the next routing action and its target concept, and the
// student-facing feedback text.
type Diagnosis struct {
	ConceptID  string       `json:"concept_id"`
	Transition MasteryState `json:"transition"`
	Action     NextAction   `json:"action"`
	// Target is the concept the action applies to: the next concept when
	// advancing, the concept to re-explain when re-teaching. Empty when
	// advancing with an exhausted curriculum.
	Target   string `json:"target,omitempty"`
	Feedback string `json:"feedback"`
}
