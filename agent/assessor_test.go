package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/memory"
	"github.com/mosaicedu/mosaic/model"
)

func TestGenerateQuestionRemembersWhatWasAsked(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	mem := memory.NewInMemoryGateway()
	m := model.NewMock().Respond("assessor", "What does the learning rate control?")
	a := NewAssessor(m, g, mem)
	sess := core.NewSession("alice")

	q, err := a.GenerateQuestion(ctx, sess, core.ConceptNode{ID: "gradient_descent", Name: "Gradient Descent"})
	require.NoError(t, err)
	assert.Equal(t, "gradient_descent", q.ConceptID)
	assert.Equal(t, "What does the learning rate control?", q.Text)

	facts, err := mem.Recall(ctx, "alice", "assessment question Gradient Descent", 5)
	require.NoError(t, err)
	require.NotEmpty(t, facts)
	assert.Contains(t, facts[0].Content, "learning rate")
}

func TestGenerateQuestionFeedsEarlierQuestionsToModel(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	mem := memory.NewInMemoryGateway()
	require.NoError(t, mem.Remember(ctx, "alice",
		"Asked assessment question on Gradient Descent: What does the learning rate control?"))
	m := model.NewMock().Respond("assessor", "Why can gradient descent get stuck in local minima?")
	a := NewAssessor(m, g, mem)
	sess := core.NewSession("alice")

	_, err := a.GenerateQuestion(ctx, sess, core.ConceptNode{ID: "gradient_descent", Name: "Gradient Descent"})
	require.NoError(t, err)

	calls := m.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Instructions, "learning rate control",
		"earlier questions must reach the model so they are not repeated")
}

func TestScoreCommitsAssessingBeforeGrading(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	forceState(t, g, "alice", "gradient_descent", core.MasteryStudying)
	// Grading fails on both attempts; the assessing transition must
	// already be on the graph.
	m := model.NewMock().Fail(errBackend)
	a := NewAssessor(m, g, memory.NewInMemoryGateway())
	sess := core.NewSession("alice")

	_, err := a.Score(ctx, sess, &core.Question{ConceptID: "gradient_descent", Text: "Explain the update rule."}, "no idea")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamReasoning)
	assert.Equal(t, core.MasteryAssessing, mustState(t, g, "alice", "gradient_descent"))
}

func TestScoreFromAnyState(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	// A student may request assessment on a concept never explained.
	m := model.NewMock().Respond("grading", "SCORE: 80\nSolid answer.")
	a := NewAssessor(m, g, memory.NewInMemoryGateway())
	sess := core.NewSession("alice")

	result, err := a.Score(ctx, sess, &core.Question{ConceptID: "calculus", Text: "What is a derivative?"}, "the rate of change")
	require.NoError(t, err)
	assert.Equal(t, 80, result.Score)
	assert.True(t, result.Passed)
	assert.Equal(t, "Solid answer.", result.Rationale)
	assert.Equal(t, core.MasteryAssessing, mustState(t, g, "alice", "calculus"))
}

func TestScoreAbortsOnStateWriteFailure(t *testing.T) {
	ctx := context.Background()
	g := &failingGraph{GraphStore: testGraph(t)}
	m := model.NewMock()
	a := NewAssessor(m, g, memory.NewInMemoryGateway())
	sess := core.NewSession("alice")

	_, err := a.Score(ctx, sess, &core.Question{ConceptID: "calculus", Text: "q"}, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStateWrite)
	assert.Empty(t, m.Calls(), "no grading happens after a failed state write")
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		score     int
		rationale string
		wantErr   bool
	}{
		{name: "plain", text: "SCORE: 85\nGood coverage.", score: 85, rationale: "Good coverage."},
		{name: "lowercase", text: "score: 40", score: 40},
		{name: "leading whitespace", text: "  SCORE: 0\nNothing right.", score: 0, rationale: "Nothing right."},
		{name: "clamped high", text: "SCORE: 150", score: 100},
		{name: "missing", text: "The answer deserves a 7 out of 10.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, rationale, err := ParseScore(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.rationale, rationale)
		})
	}
}
