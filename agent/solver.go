package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/model"
)

// SolverOptions configure the solver agent.
type SolverOptions struct {
	// TopK is the number of passages requested from the retriever.
	TopK int
	// RecallLimit is the number of memory facts recalled per explanation.
	RecallLimit int
	Logger      logging.Logger
}

// Solver produces explanations. A full explanation grounds itself in
// retrieved curriculum passages and recalled student facts, marks an
// unstudied concept as studying, and writes a study fact to memory. A
// brief answer touches no durable state at all.
type Solver struct {
	model     model.Model
	graph     core.GraphStore
	memory    core.MemoryGateway
	retriever core.Retriever
	opts      SolverOptions
}

// NewSolver constructs a solver agent.
func NewSolver(m model.Model, g core.GraphStore, mem core.MemoryGateway, ret core.Retriever, optFns ...func(o *SolverOptions)) *Solver {
	opts := SolverOptions{
		TopK:        5,
		RecallLimit: 5,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Solver{model: m, graph: g, memory: mem, retriever: ret, opts: opts}
}

// Explanation is the solver's output for one full teaching turn.
type Explanation struct {
	ConceptID string
	Text      string
	// Degraded is set when retrieval was unavailable and the explanation
	// came from general knowledge plus memory context only.
	Degraded bool
}

// Explain produces a full explanation of the concept for the student.
//
// Retrieval and memory recall run concurrently; neither failure is fatal.
// The mastery transition unstudied -> studying is committed before the
// model call so a crash mid-explanation still leaves the graph honest
// about what the student has seen. Re-explaining a concept already past
// unstudied changes no state.
func (s *Solver) Explain(ctx context.Context, sess *core.Session, concept core.ConceptNode) (*Explanation, error) {
	query := concept.Name
	if query == "" {
		query = concept.ID
	}

	passages, facts, degraded := s.gatherContext(ctx, sess.StudentID, query, concept.TopicArea)

	state, err := s.graph.GetState(ctx, sess.StudentID, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if state == core.MasteryUnstudied {
		if err := s.graph.SetState(ctx, sess.StudentID, concept.ID, core.MasteryStudying); err != nil {
			return nil, fmt.Errorf("solver: %w: %v", core.ErrStateWrite, err)
		}
	}

	primary := model.Request{
		Instructions: explainInstructions(sess, concept, passages, facts, degraded),
		Input:        fmt.Sprintf("Explain %s to the student.", query),
	}
	simplified := model.Request{
		Instructions: fmt.Sprintf("You are a tutor. Explain the concept %q clearly for a student.", query),
		Input:        primary.Input,
	}
	resp, err := model.GenerateWithFallback(ctx, s.model, primary, simplified)
	if err != nil {
		return nil, fmt.Errorf("solver: %w: %v", core.ErrUpstreamReasoning, err)
	}

	fact := fmt.Sprintf("Studied %s (%s).", query, concept.ID)
	if err := s.memory.Remember(ctx, sess.StudentID, fact); err != nil {
		s.opts.Logger.Warn("memory write failed", "error", err)
	}

	return &Explanation{ConceptID: concept.ID, Text: resp.Text, Degraded: degraded}, nil
}

// BriefAnswer produces a short answer to a quick question. No mastery
// state changes, no memory writes; the caller offers the followup.
func (s *Solver) BriefAnswer(ctx context.Context, sess *core.Session, concept core.ConceptNode, question string) (string, error) {
	passages, facts, _ := s.gatherContext(ctx, sess.StudentID, question, concept.TopicArea)

	primary := model.Request{
		Instructions: briefInstructions(concept, passages, facts),
		Input:        question,
	}
	simplified := model.Request{
		Instructions: "You are a tutor. Answer the student's question in two or three sentences.",
		Input:        question,
	}
	resp, err := model.GenerateWithFallback(ctx, s.model, primary, simplified)
	if err != nil {
		return "", fmt.Errorf("solver: %w: %v", core.ErrUpstreamReasoning, err)
	}
	return resp.Text, nil
}

// gatherContext issues retrieval and memory recall concurrently. A failed
// retrieval degrades the answer; a failed recall just loses
// personalization. Both are logged, neither aborts the turn.
func (s *Solver) gatherContext(ctx context.Context, studentID, query, topicArea string) ([]core.Passage, []core.Fact, bool) {
	var (
		wg        sync.WaitGroup
		passages  []core.Passage
		facts     []core.Fact
		retErr    error
		recallErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		passages, retErr = s.retriever.Query(ctx, query, topicArea, s.opts.TopK)
	}()
	go func() {
		defer wg.Done()
		facts, recallErr = s.memory.Recall(ctx, studentID, query, s.opts.RecallLimit)
	}()
	wg.Wait()

	degraded := false
	if retErr != nil {
		degraded = true
		s.opts.Logger.Warn("retrieval degraded", "error", fmt.Errorf("%w: %v", core.ErrDegradedRetrieval, retErr))
		passages = nil
	}
	if recallErr != nil {
		s.opts.Logger.Warn("memory recall failed", "error", recallErr)
		facts = nil
	}
	return passages, facts, degraded
}

func explainInstructions(sess *core.Session, concept core.ConceptNode, passages []core.Passage, facts []core.Fact, degraded bool) string {
	var b strings.Builder
	b.WriteString("You are a patient tutor giving a full explanation of one concept.\n")
	fmt.Fprintf(&b, "Concept: %s\n", concept.Name)
	fmt.Fprintf(&b, "Preferred style: %s. Difficulty: %s.\n", sess.Style, sess.Difficulty)
	if len(concept.Prereqs) > 0 {
		fmt.Fprintf(&b, "The concept builds on: %s.\n", strings.Join(concept.Prereqs, ", "))
	}
	writeContext(&b, passages, facts)
	if degraded {
		b.WriteString("Course material is unavailable right now; answer from general knowledge and say so briefly.\n")
	}
	b.WriteString("End with one short question checking the student followed.\n")
	return b.String()
}

func briefInstructions(concept core.ConceptNode, passages []core.Passage, facts []core.Fact) string {
	var b strings.Builder
	b.WriteString("You are a tutor. Answer the student's question in two or three sentences.\n")
	if concept.ID != "" {
		fmt.Fprintf(&b, "The question is about: %s.\n", concept.Name)
	}
	writeContext(&b, passages, facts)
	b.WriteString("Do not lecture; a fuller explanation is offered separately.\n")
	return b.String()
}

func writeContext(b *strings.Builder, passages []core.Passage, facts []core.Fact) {
	if len(passages) > 0 {
		b.WriteString("Course material:\n")
		for _, p := range passages {
			fmt.Fprintf(b, "- %s\n", p.Text)
		}
	}
	if len(facts) > 0 {
		b.WriteString("What you know about this student:\n")
		for _, f := range facts {
			fmt.Fprintf(b, "- %s\n", f.Content)
		}
	}
}
