package agent

import (
	"context"
	"fmt"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/model"
)

// FeedbackOptions configure the feedback agent.
type FeedbackOptions struct {
	// PassThreshold is the minimum score counted as mastery.
	PassThreshold int
	// PartialFloor separates partial understanding (needs review) from a
	// failing answer that triggers a prerequisite check.
	PartialFloor int
	Logger       logging.Logger
}

// Feedback turns an assessment result into a mastery verdict: which state
// the concept transitions to, what the tutor does next, and the text shown
// to the student. The mastery write is the turn's point of no return; if
// it fails the diagnosis is abandoned with core.ErrStateWrite.
type Feedback struct {
	model  model.Model
	graph  core.GraphStore
	memory core.MemoryGateway
	opts   FeedbackOptions
}

// NewFeedback constructs a feedback agent.
func NewFeedback(m model.Model, g core.GraphStore, mem core.MemoryGateway, optFns ...func(o *FeedbackOptions)) *Feedback {
	opts := FeedbackOptions{
		PassThreshold: 70,
		PartialFloor:  40,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Feedback{model: m, graph: g, memory: mem, opts: opts}
}

// Diagnose applies the scoring policy to one assessment result.
//
//   - score >= PassThreshold: the concept is mastered and the tutor
//     advances to the next eligible concept.
//   - PartialFloor <= score < PassThreshold: partial understanding; the
//     concept needs review and is re-taught.
//   - score < PartialFloor with an unmet prerequisite: the blocker lies
//     upstream; the concept is marked prereq gap and the unmet
//     prerequisite closest to the curriculum roots is re-taught first.
//   - score < PartialFloor with all prerequisites mastered: the concept
//     itself needs review and is re-taught.
func (f *Feedback) Diagnose(ctx context.Context, sess *core.Session, result *core.AssessmentResult) (*core.Diagnosis, error) {
	d := &core.Diagnosis{ConceptID: result.ConceptID}

	switch {
	case result.Score >= f.opts.PassThreshold:
		d.Transition = core.MasteryMastered
		d.Action = core.ActionAdvance
	case result.Score >= f.opts.PartialFloor:
		d.Transition = core.MasteryNeedsReview
		d.Action = core.ActionReTeach
		d.Target = result.ConceptID
	default:
		gap, err := f.findPrereqGap(ctx, sess.StudentID, result.ConceptID)
		if err != nil {
			return nil, fmt.Errorf("feedback: %w", err)
		}
		if gap != nil {
			d.Transition = core.MasteryPrereqGap
			d.Action = core.ActionReTeach
			d.Target = gap.ID
		} else {
			d.Transition = core.MasteryNeedsReview
			d.Action = core.ActionReTeach
			d.Target = result.ConceptID
		}
	}

	if err := f.graph.SetState(ctx, sess.StudentID, result.ConceptID, d.Transition); err != nil {
		return nil, fmt.Errorf("feedback: %w: %v", core.ErrStateWrite, err)
	}

	if d.Action == core.ActionAdvance {
		next, err := f.graph.NextConcept(ctx, sess.StudentID)
		if err != nil {
			f.opts.Logger.Warn("next concept lookup failed", "error", err)
		} else if next != nil {
			d.Target = next.ID
		}
	}

	d.Feedback = f.feedbackText(ctx, sess, result, d)

	fact := fmt.Sprintf("Assessment on %s scored %d, outcome %s.", result.ConceptID, result.Score, d.Transition)
	if err := f.memory.Remember(ctx, sess.StudentID, fact); err != nil {
		f.opts.Logger.Warn("memory write failed", "error", err)
	}
	return d, nil
}

// findPrereqGap returns the unmet prerequisite to re-teach, or nil when
// every prerequisite is mastered. Among multiple unmet prerequisites the
// one with the fewest transitive prerequisites of its own wins (the most
// upstream blocker), with the concept id breaking ties.
func (f *Feedback) findPrereqGap(ctx context.Context, studentID, conceptID string) (*core.ConceptNode, error) {
	prereqs, err := f.graph.Prerequisites(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	var (
		best      *core.ConceptNode
		bestDepth int
	)
	for _, p := range prereqs {
		state, err := f.graph.GetState(ctx, studentID, p.ID)
		if err != nil {
			return nil, err
		}
		if state == core.MasteryMastered {
			continue
		}
		chain, err := f.graph.PrerequisiteChain(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		depth := len(chain)
		if best == nil || depth < bestDepth || (depth == bestDepth && p.ID < best.ID) {
			node := p
			best = &node
			bestDepth = depth
		}
	}
	return best, nil
}

// feedbackText asks the model for student-facing feedback, falling back
// to a deterministic message when the model is unavailable. Feedback
// prose is never worth failing a turn whose verdict is already committed.
func (f *Feedback) feedbackText(ctx context.Context, sess *core.Session, result *core.AssessmentResult, d *core.Diagnosis) string {
	instructions := fmt.Sprintf(
		"You are a tutor giving feedback on an assessment answer.\n"+
			"Question: %s\nStudent answer: %s\nScore: %d of 100.\nGrader notes: %s\nOutcome: %s.\n"+
			"Preferred style: %s.\n"+
			"Write two or three encouraging sentences: what was right, what to improve, and what happens next.",
		result.Question, result.Answer, result.Score, result.Rationale, d.Transition, sess.Style,
	)
	simplified := model.Request{
		Instructions: fmt.Sprintf("A student scored %d of 100 on a quiz. Write two encouraging feedback sentences.", result.Score),
		Input:        "Write the feedback.",
	}
	resp, err := model.GenerateWithFallback(ctx, f.model,
		model.Request{Instructions: instructions, Input: "Write the feedback."}, simplified)
	if err != nil {
		f.opts.Logger.Warn("feedback text generation failed", "error", err)
		return fallbackFeedback(result.Score, d)
	}
	return resp.Text
}

func fallbackFeedback(score int, d *core.Diagnosis) string {
	switch {
	case d.Transition == core.MasteryMastered:
		return fmt.Sprintf("Great work, you scored %d and mastered this concept. Let's move on.", score)
	case d.Transition == core.MasteryPrereqGap:
		return fmt.Sprintf("You scored %d. The gap looks like it comes from an earlier concept, so let's revisit that first.", score)
	default:
		return fmt.Sprintf("You scored %d. You're partway there; let's go over this concept again.", score)
	}
}
