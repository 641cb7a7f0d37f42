package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/model"
)

// AssessorOptions configure the assessor agent.
type AssessorOptions struct {
	// PassThreshold is the minimum score counted as a pass.
	PassThreshold int
	// RecallLimit bounds how many previously asked questions are recalled
	// to avoid repetition.
	RecallLimit int
	Logger      logging.Logger
}

// Assessor generates assessment questions and scores answers. Scoring
// commits the concept to assessing before the grading call, so a crash
// between the two leaves the graph showing an assessment in flight rather
// than a phantom outcome.
type Assessor struct {
	model  model.Model
	graph  core.GraphStore
	memory core.MemoryGateway
	opts   AssessorOptions
}

// NewAssessor constructs an assessor agent.
func NewAssessor(m model.Model, g core.GraphStore, mem core.MemoryGateway, optFns ...func(o *AssessorOptions)) *Assessor {
	opts := AssessorOptions{
		PassThreshold: 70,
		RecallLimit:   5,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Assessor{model: m, graph: g, memory: mem, opts: opts}
}

// GenerateQuestion produces a fresh assessment question for the concept.
// Previously asked questions are recalled from memory and handed to the
// model so the student is not quizzed with the same question twice.
func (a *Assessor) GenerateQuestion(ctx context.Context, sess *core.Session, concept core.ConceptNode) (*core.Question, error) {
	asked, err := a.memory.Recall(ctx, sess.StudentID, "assessment question "+concept.Name, a.opts.RecallLimit)
	if err != nil {
		a.opts.Logger.Warn("memory recall failed", "error", err)
		asked = nil
	}

	var b strings.Builder
	b.WriteString("You are an assessor. Write one open question testing understanding of the concept.\n")
	fmt.Fprintf(&b, "Concept: %s\n", concept.Name)
	fmt.Fprintf(&b, "Difficulty: %s.\n", sess.Difficulty)
	if len(asked) > 0 {
		b.WriteString("Do not repeat any of these earlier questions:\n")
		for _, f := range asked {
			fmt.Fprintf(&b, "- %s\n", f.Content)
		}
	}
	b.WriteString("Reply with the question text only.\n")

	primary := model.Request{Instructions: b.String(), Input: "Write the question."}
	simplified := model.Request{
		Instructions: fmt.Sprintf("Write one short quiz question about %q. Reply with the question only.", concept.Name),
		Input:        "Write the question.",
	}
	resp, err := model.GenerateWithFallback(ctx, a.model, primary, simplified)
	if err != nil {
		return nil, fmt.Errorf("assessor: %w: %v", core.ErrUpstreamReasoning, err)
	}

	question := &core.Question{
		ConceptID:  concept.ID,
		Text:       strings.TrimSpace(resp.Text),
		Difficulty: string(sess.Difficulty),
	}
	fact := fmt.Sprintf("Asked assessment question on %s: %s", concept.Name, question.Text)
	if err := a.memory.Remember(ctx, sess.StudentID, fact); err != nil {
		a.opts.Logger.Warn("memory write failed", "error", err)
	}
	return question, nil
}

// Score grades the student's answer to an outstanding question.
//
// The transition to assessing is committed first. Any mastery state may
// enter assessing, so this never fails on the state machine; a storage
// failure surfaces core.ErrStateWrite and aborts the turn before any
// grading happens.
func (a *Assessor) Score(ctx context.Context, sess *core.Session, q *core.Question, answer string) (*core.AssessmentResult, error) {
	if err := a.graph.SetState(ctx, sess.StudentID, q.ConceptID, core.MasteryAssessing); err != nil {
		return nil, fmt.Errorf("assessor: %w: %v", core.ErrStateWrite, err)
	}

	instructions := fmt.Sprintf(
		"You are grading a student's answer.\nQuestion: %s\n"+
			"Score the answer from 0 to 100 for correctness and completeness.\n"+
			"Reply with the first line exactly \"SCORE: <number>\" followed by one short rationale line.",
		q.Text,
	)
	primary := model.Request{Instructions: instructions, Input: answer}
	simplified := model.Request{
		Instructions: fmt.Sprintf("Grade this answer to %q from 0 to 100. First line: \"SCORE: <number>\".", q.Text),
		Input:        answer,
	}
	resp, err := model.GenerateWithFallback(ctx, a.model, primary, simplified)
	if err != nil {
		return nil, fmt.Errorf("assessor: %w: %v", core.ErrUpstreamReasoning, err)
	}

	score, rationale, err := ParseScore(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("assessor: %w: %v", core.ErrUpstreamReasoning, err)
	}

	return &core.AssessmentResult{
		ConceptID: q.ConceptID,
		Question:  q.Text,
		Answer:    answer,
		Score:     score,
		Rationale: rationale,
		Passed:    score >= a.opts.PassThreshold,
	}, nil
}

var scoreRe = regexp.MustCompile(`(?mi)^\s*SCORE:\s*(\d+)`)

// ParseScore extracts the numeric score and trailing rationale from a
// grader reply. Scores are clamped to [0,100].
func ParseScore(text string) (int, string, error) {
	m := scoreRe.FindStringSubmatchIndex(text)
	if m == nil {
		return 0, "", fmt.Errorf("no score in grader reply %q", text)
	}
	score, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return 0, "", fmt.Errorf("parse score: %w", err)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	rationale := strings.TrimSpace(text[m[1]:])
	return score, rationale, nil
}
