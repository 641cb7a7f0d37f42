package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicedu/mosaic/agent"
	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/graph"
	"github.com/mosaicedu/mosaic/memory"
	"github.com/mosaicedu/mosaic/model"
	"github.com/mosaicedu/mosaic/retrieval"
	"github.com/mosaicedu/mosaic/session"
)

// tutorMock wires one mock model for every agent and the classifier.
// Registrations key off distinctive instruction fragments.
func tutorMock() *model.Mock {
	return model.NewMock().
		Respond("You are an assessor", "What does the learning rate control?").
		Respond("grading", "SCORE: 95\nComplete and correct.").
		Respond("feedback on an assessment", "Nice work, that was spot on.").
		Respond("full explanation", "Here is the full story of the concept, step by step.").
		Respond("Answer the student's question", "In short, it measures change.").
		Respond("accept the offer", "OTHER").
		Respond("Classify the student's message", "QUESTION").
		Respond("small talk", "Hello! Ready to learn something?")
}

type fixture struct {
	orch     *Orchestrator
	graph    *graph.InMemoryStore
	sessions *session.InMemoryStore
	memory   *memory.InMemoryGateway
}

func newFixture(t *testing.T, m *model.Mock) *fixture {
	t.Helper()
	g := graph.NewInMemoryStore()
	require.NoError(t, g.Load([]core.ConceptNode{
		{ID: "algebra", Name: "Algebra", TopicArea: "math"},
		{ID: "calculus", Name: "Calculus", TopicArea: "math", Prereqs: []string{"algebra"}},
		{ID: "gradient_descent", Name: "Gradient Descent", TopicArea: "ml", Prereqs: []string{"calculus"}},
		{ID: "regression_stats", Name: "Regression", TopicArea: "statistics"},
		{ID: "regression_ml", Name: "Regression", TopicArea: "ml"},
	}))

	mem := memory.NewInMemoryGateway()
	ret := retrieval.NewInMemoryRetriever(
		retrieval.Document{ID: "doc-1", TopicArea: "ml", Text: "Gradient descent minimizes a loss function."},
	)
	sessions := session.NewInMemoryStore()

	orch := New(
		sessions, g,
		agent.NewSolver(m, g, mem, ret),
		agent.NewAssessor(m, g, mem),
		agent.NewFeedback(m, g, mem),
		m,
	)
	return &fixture{orch: orch, graph: g, sessions: sessions, memory: mem}
}

func state(t *testing.T, g core.GraphStore, studentID, conceptID string) core.MasteryState {
	t.Helper()
	st, err := g.GetState(context.Background(), studentID, conceptID)
	require.NoError(t, err)
	return st
}

func TestAssessmentIntentRoutesToAssessor(t *testing.T) {
	f := newFixture(t, tutorMock())

	reply, err := f.orch.HandleTurn(context.Background(), "alice", "quiz me on gradient descent")
	require.NoError(t, err)
	assert.Equal(t, "assessor", reply.Agent)
	assert.Equal(t, ruleAssessment, reply.Rule)
	assert.Equal(t, "gradient_descent", reply.ConceptID)
	assert.Equal(t, "What does the learning rate control?", reply.Text)

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, sess.PendingQuestion)
	assert.Equal(t, "gradient_descent", sess.PendingQuestion.ConceptID)
}

func TestAssessmentIntentBeatsPendingQuestion(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "quiz me on calculus")
	require.NoError(t, err)

	// Instead of answering, the student asks for a different quiz. The
	// assessment vocabulary outranks the outstanding question.
	reply, err := f.orch.HandleTurn(ctx, "alice", "actually quiz me on algebra instead")
	require.NoError(t, err)
	assert.Equal(t, ruleAssessment, reply.Rule)
	assert.Equal(t, "algebra", reply.ConceptID)
}

func TestAssessmentIntentBeatsCasualKeywords(t *testing.T) {
	f := newFixture(t, tutorMock())

	// "hello" is a casual keyword, but assessment vocabulary is checked
	// first and wins.
	reply, err := f.orch.HandleTurn(context.Background(), "alice", "hello, quiz me on algebra")
	require.NoError(t, err)
	assert.Equal(t, ruleAssessment, reply.Rule)
	assert.Equal(t, "assessor", reply.Agent)
	assert.Equal(t, "algebra", reply.ConceptID)
}

func TestAssessmentWithoutConceptFallsBackToCurrent(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "what is gradient descent")
	require.NoError(t, err)
	_, err = f.orch.HandleTurn(ctx, "alice", "yes")
	require.NoError(t, err)

	reply, err := f.orch.HandleTurn(ctx, "alice", "ok quiz me")
	require.NoError(t, err)
	assert.Equal(t, "gradient_descent", reply.ConceptID)
}

func TestAssessmentWithoutAnyConceptAsksForOne(t *testing.T) {
	f := newFixture(t, tutorMock())

	_, err := f.orch.HandleTurn(context.Background(), "alice", "quiz me")
	require.Error(t, err)
	ce, ok := core.AsClarification(err)
	require.True(t, ok)
	assert.Contains(t, ce.Prompt, "Which concept")
}

func TestBriefAnswerThenFollowupExplains(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	reply, err := f.orch.HandleTurn(ctx, "alice", "what is gradient descent?")
	require.NoError(t, err)
	assert.Equal(t, "solver", reply.Agent)
	assert.Contains(t, reply.Text, "Want a deeper explanation?")
	// The brief answer alone moves no mastery state.
	assert.Equal(t, core.MasteryUnstudied, state(t, f.graph, "alice", "gradient_descent"))

	reply, err = f.orch.HandleTurn(ctx, "alice", "yes")
	require.NoError(t, err)
	assert.Equal(t, "solver", reply.Agent)
	assert.Equal(t, ruleFollowup, reply.Rule)
	assert.Contains(t, reply.Text, "full story")
	assert.Equal(t, core.MasteryStudying, state(t, f.graph, "alice", "gradient_descent"))
}

func TestDecliningFollowupClearsOffer(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "what is calculus?")
	require.NoError(t, err)

	reply, err := f.orch.HandleTurn(ctx, "alice", "no thanks")
	require.NoError(t, err)
	assert.Equal(t, ruleFollowup, reply.Rule)
	assert.Equal(t, core.MasteryUnstudied, state(t, f.graph, "alice", "calculus"))

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	assert.False(t, sess.PendingFollowup)
}

func TestTopicChangeLapsesFollowup(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "what is calculus?")
	require.NoError(t, err)

	// Neither a yes nor a no; the classifier says OTHER and routing
	// continues with the offer dropped.
	reply, err := f.orch.HandleTurn(ctx, "alice", "what is algebra?")
	require.NoError(t, err)
	assert.Equal(t, "solver", reply.Agent)
	assert.Equal(t, "algebra", reply.ConceptID)

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "algebra", sess.PendingConcept)
}

func TestPoliteTopicChangeDoesNotAcceptFollowup(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "what is calculus?")
	require.NoError(t, err)

	// "sure" on its own would accept the offer, but this message carries
	// its own question, so the keyword fast path must stand aside. The
	// classifier says OTHER, the offer lapses, and the concept the student
	// actually asked about is answered.
	reply, err := f.orch.HandleTurn(ctx, "alice", "sure, but first what is algebra?")
	require.NoError(t, err)
	assert.Equal(t, "algebra", reply.ConceptID)
	assert.Equal(t, core.MasteryUnstudied, state(t, f.graph, "alice", "calculus"))

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "algebra", sess.PendingConcept)
}

func TestAnswerFlowPassAdvances(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "quiz me on algebra")
	require.NoError(t, err)

	reply, err := f.orch.HandleTurn(ctx, "alice", "it controls the step size of each update")
	require.NoError(t, err)
	assert.Equal(t, "feedback", reply.Agent)
	assert.Equal(t, ruleAnswer, reply.Rule)
	assert.Contains(t, reply.Text, "Nice work")
	assert.Contains(t, reply.Text, "Next up: Calculus")
	assert.Equal(t, core.MasteryMastered, state(t, f.graph, "alice", "algebra"))

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	assert.Nil(t, sess.PendingQuestion)
	assert.Equal(t, "calculus", sess.PendingConcept, "accepting the offer starts the next concept")
}

func TestAnswerFlowFailReTeaches(t *testing.T) {
	m := model.NewMock().
		Respond("You are an assessor", "Solve for x: 2x = 10.").
		Respond("grading", "SCORE: 50\nPartial understanding.").
		Respond("feedback on an assessment", "Almost there.").
		Respond("full explanation", "Let's go over it once more.")
	f := newFixture(t, m)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "bob", "quiz me on algebra")
	require.NoError(t, err)
	reply, err := f.orch.HandleTurn(ctx, "bob", "x is five maybe")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Almost there.")
	assert.Contains(t, reply.Text, "once more")
	assert.Equal(t, "algebra", reply.ConceptID)
	// needs_review was committed, then re-teaching moved it to studying.
	assert.Equal(t, core.MasteryStudying, state(t, f.graph, "bob", "algebra"))
}

func TestCasualKeywordSkipsClassifier(t *testing.T) {
	// No QUESTION/CHAT registration: if the classifier were consulted the
	// reply would be the mock echo, not the small talk line.
	m := model.NewMock().Respond("small talk", "Hey there! What shall we study?")
	f := newFixture(t, m)

	reply, err := f.orch.HandleTurn(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, ruleCasual, reply.Rule)
	assert.Equal(t, "Hey there! What shall we study?", reply.Text)
}

func TestClassifierChatRoute(t *testing.T) {
	m := model.NewMock().
		Respond("Classify the student's message", "CHAT").
		Respond("small talk", "Happy to chat!")
	f := newFixture(t, m)

	reply, err := f.orch.HandleTurn(context.Background(), "alice", "my day was long")
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", reply.Agent)
	assert.Equal(t, "Happy to chat!", reply.Text)
}

func TestAmbiguousConceptAsksForClarification(t *testing.T) {
	f := newFixture(t, tutorMock())

	_, err := f.orch.HandleTurn(context.Background(), "alice", "quiz me on regression")
	require.Error(t, err)
	ce, ok := core.AsClarification(err)
	require.True(t, ok)
	assert.Len(t, ce.Candidates, 2)
	// Nothing was committed.
	assert.Equal(t, core.MasteryUnstudied, state(t, f.graph, "alice", "regression_stats"))
	assert.Equal(t, core.MasteryUnstudied, state(t, f.graph, "alice", "regression_ml"))
}

func TestAmbiguityResolvedByTopicArea(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	// Working in ml narrows "regression" to the ml concept.
	_, err := f.orch.HandleTurn(ctx, "alice", "what is gradient descent?")
	require.NoError(t, err)
	_, err = f.orch.HandleTurn(ctx, "alice", "yes")
	require.NoError(t, err)

	reply, err := f.orch.HandleTurn(ctx, "alice", "quiz me on regression")
	require.NoError(t, err)
	assert.Equal(t, "regression_ml", reply.ConceptID)
}

func TestRoutingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f := newFixture(t, tutorMock())
		reply, err := f.orch.HandleTurn(ctx, "alice", "quiz me on calculus")
		require.NoError(t, err)
		assert.Equal(t, ruleAssessment, reply.Rule)
		assert.Equal(t, "calculus", reply.ConceptID)
	}
}

func TestTranscriptRecordsBothSides(t *testing.T) {
	f := newFixture(t, tutorMock())
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "alice", "hello")
	require.NoError(t, err)

	sess, err := f.sessions.Get("alice")
	require.NoError(t, err)
	require.Len(t, sess.Transcript, 2)
	assert.Equal(t, "student", sess.Transcript[0].Role)
	assert.Equal(t, "tutor", sess.Transcript[1].Role)
}

func TestStateWriteFailureAbortsTurn(t *testing.T) {
	m := tutorMock()
	g := graph.NewInMemoryStore()
	require.NoError(t, g.Load([]core.ConceptNode{{ID: "algebra", Name: "Algebra", TopicArea: "math"}}))
	broken := &failingGraph{GraphStore: g}
	mem := memory.NewInMemoryGateway()
	sessions := session.NewInMemoryStore()
	orch := New(sessions, broken,
		agent.NewSolver(m, broken, mem, retrieval.NewInMemoryRetriever()),
		agent.NewAssessor(m, broken, mem),
		agent.NewFeedback(m, broken, mem),
		m,
	)

	_, err := orch.HandleTurn(context.Background(), "alice", "quiz me on algebra")
	require.NoError(t, err, "question generation does not write state")

	_, err = orch.HandleTurn(context.Background(), "alice", "some answer")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStateWrite)
}

type failingGraph struct {
	core.GraphStore
}

func (f *failingGraph) SetState(context.Context, string, string, core.MasteryState) error {
	return assert.AnError
}
