package core

import "fmt"

// MasteryState is the tutoring-progress status of one (student, concept)
// pair. It is a small state machine, not a scale: states are not totally
// ordered and three of them (mastered, needs_review, prereq_gap) can be
// re-entered from at will.
//
// Lifecycle:
//
//	unstudied → studying → assessing → {mastered, needs_review, prereq_gap}
//
// Any state may move to assessing (a student can ask to be quizzed on a
// concept they never studied). The three outcome states may re-enter
// studying (review) or assessing (retest). No state is terminal and
// unstudied is the only initial state.
type MasteryState string

const (
	// MasteryUnstudied is the initial state of every concept.
	MasteryUnstudied MasteryState = "unstudied"
	// MasteryStudying marks a concept the student has received a full
	// explanation for.
	MasteryStudying MasteryState = "studying"
	// MasteryAssessing marks a concept with an assessment in flight. The
	// transition is committed before scoring so a crash mid-grade leaves
	// the node correctly marked rather than stuck in a prior state.
	MasteryAssessing MasteryState = "assessing"
	// MasteryMastered marks a concept passed at or above the pass threshold.
	MasteryMastered MasteryState = "mastered"
	// MasteryNeedsReview marks a concept failed above the partial-credit floor.
	MasteryNeedsReview MasteryState = "needs_review"
	// MasteryPrereqGap marks a concept failed below the floor with at least
	// one unmastered prerequisite; the real blocker lies upstream.
	MasteryPrereqGap MasteryState = "prereq_gap"
)

// masteryEdges is the closed set of legal transitions. Self-transitions are
// handled separately as no-ops.
var masteryEdges = map[MasteryState][]MasteryState{
	MasteryUnstudied:   {MasteryStudying, MasteryAssessing},
	MasteryStudying:    {MasteryAssessing},
	MasteryAssessing:   {MasteryMastered, MasteryNeedsReview, MasteryPrereqGap},
	MasteryMastered:    {MasteryStudying, MasteryAssessing},
	MasteryNeedsReview: {MasteryStudying, MasteryAssessing},
	MasteryPrereqGap:   {MasteryStudying, MasteryAssessing},
}

// masteryColors maps each state 1:1 to the visualization color used by the
// graph export.
var masteryColors = map[MasteryState]string{
	MasteryUnstudied:   "grey",
	MasteryStudying:    "blue",
	MasteryAssessing:   "yellow",
	MasteryMastered:    "green",
	MasteryNeedsReview: "red",
	MasteryPrereqGap:   "orange",
}

// Valid reports whether s is one of the declared states.
func (s MasteryState) Valid() bool {
	_, ok := masteryColors[s]
	return ok
}

// Color returns the visualization color for the state ("grey" for unknown
// states so exports never fail on corrupt data).
func (s MasteryState) Color() string {
	if c, ok := masteryColors[s]; ok {
		return c
	}
	return "grey"
}

// IsOutcome reports whether s is one of the three assessment outcome states.
func (s MasteryState) IsOutcome() bool {
	return s == MasteryMastered || s == MasteryNeedsReview || s == MasteryPrereqGap
}

// CanTransition reports whether from → to is a legal mastery transition.
// A self-transition is always legal and treated by stores as a no-op, which
// makes repeated full explanations idempotent (studying stays studying).
func CanTransition(from, to MasteryState) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range masteryEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseMasteryState converts a stored string into a MasteryState, erroring
// on anything outside the declared set.
func ParseMasteryState(s string) (MasteryState, error) {
	st := MasteryState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown mastery state %q", s)
	}
	return st, nil
}
