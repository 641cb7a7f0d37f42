package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicedu/mosaic/core"
)

// curriculum: algebra → calculus → gradient_descent → backprop,
// with linear_algebra also required by gradient_descent.
func testStore(t *testing.T) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	require.NoError(t, s.Load([]core.ConceptNode{
		{ID: "algebra", Name: "Algebra", TopicArea: "math"},
		{ID: "linear_algebra", Name: "Linear Algebra", TopicArea: "math", Prereqs: []string{"algebra"}},
		{ID: "calculus", Name: "Calculus", TopicArea: "math", Prereqs: []string{"algebra"}},
		{ID: "gradient_descent", Name: "Gradient Descent", TopicArea: "ml", Prereqs: []string{"calculus", "linear_algebra"}},
		{ID: "backprop", Name: "Backpropagation", TopicArea: "ml", Prereqs: []string{"gradient_descent"}},
	}))
	return s
}

func TestAddConceptRejectsDuplicates(t *testing.T) {
	s := testStore(t)
	err := s.AddConcept(core.ConceptNode{ID: "algebra", Name: "Algebra"})
	assert.Error(t, err)
}

func TestGetStateDefaultsToUnstudied(t *testing.T) {
	s := testStore(t)
	st, err := s.GetState(context.Background(), "alice", "calculus")
	require.NoError(t, err)
	assert.Equal(t, core.MasteryUnstudied, st)

	_, err = s.GetState(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, core.ErrConceptNotFound)
}

func TestSetStateEnforcesMachine(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// Legal path: unstudied -> studying -> assessing -> mastered.
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryStudying))
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryAssessing))
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryMastered))

	// Skipping straight to mastered is rejected.
	err := s.SetState(ctx, "alice", "algebra", core.MasteryMastered)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	st, err := s.GetState(ctx, "alice", "algebra")
	require.NoError(t, err)
	assert.Equal(t, core.MasteryUnstudied, st, "rejected write must not mutate state")
}

func TestSetStateSelfTransitionIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryStudying))
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryStudying))

	st, err := s.GetState(ctx, "alice", "calculus")
	require.NoError(t, err)
	assert.Equal(t, core.MasteryStudying, st)
}

func TestCrossStudentIsolation(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryStudying))

	st, err := s.GetState(ctx, "bob", "calculus")
	require.NoError(t, err)
	assert.Equal(t, core.MasteryUnstudied, st)
}

func TestResolveConcept(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	matches, err := s.ResolveConcept(ctx, "gradient descent")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "gradient_descent", matches[0].ID)

	matches, err = s.ResolveConcept(ctx, "backprop") // id fallback
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = s.ResolveConcept(ctx, "quantum chromodynamics")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestResolveConceptAmbiguous(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.AddConcept(core.ConceptNode{ID: "regression_stats", Name: "Regression", TopicArea: "statistics"}))
	require.NoError(t, s.AddConcept(core.ConceptNode{ID: "regression_ml", Name: "Regression", TopicArea: "ml"}))

	matches, err := s.ResolveConcept(ctx, "Regression")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestPrerequisiteChainNearestFirst(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	chain, err := s.PrerequisiteChain(ctx, "backprop")
	require.NoError(t, err)
	require.Len(t, chain, 4)
	assert.Equal(t, "gradient_descent", chain[0].ID)
	// Depth two prereqs follow, depth three last.
	assert.ElementsMatch(t, []string{"calculus", "linear_algebra"}, []string{chain[1].ID, chain[2].ID})
	assert.Equal(t, "algebra", chain[3].ID)
}

func TestNextConceptFollowsTopoOrder(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	next, err := s.NextConcept(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "algebra", next.ID)

	master := func(id string) {
		require.NoError(t, s.SetState(ctx, "alice", id, core.MasteryAssessing))
		require.NoError(t, s.SetState(ctx, "alice", id, core.MasteryMastered))
	}

	master("algebra")
	next, err = s.NextConcept(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "calculus", next.ID, "deterministic id tie-break between calculus and linear_algebra")

	master("calculus")
	master("linear_algebra")
	next, err = s.NextConcept(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "gradient_descent", next.ID)

	master("gradient_descent")
	master("backprop")
	next, err = s.NextConcept(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, next, "curriculum exhausted")
}

func TestVisualizationColors(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.SetState(ctx, "alice", "algebra", core.MasteryStudying))
	require.NoError(t, s.SetState(ctx, "alice", "calculus", core.MasteryAssessing))

	view, err := s.Visualization(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, view.Nodes, 5)

	colors := map[string]string{}
	for _, n := range view.Nodes {
		colors[n.ID] = n.Color
	}
	assert.Equal(t, "blue", colors["algebra"])
	assert.Equal(t, "yellow", colors["calculus"])
	assert.Equal(t, "grey", colors["backprop"])

	// Bob's view is untouched by Alice's progress.
	bobView, err := s.Visualization(ctx, "bob")
	require.NoError(t, err)
	for _, n := range bobView.Nodes {
		assert.Equal(t, "grey", n.Color)
	}

	assert.Contains(t, view.Edges, core.Edge{From: "calculus", To: "gradient_descent"})
}

func TestGetSubgraph(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	sub, err := s.GetSubgraph(ctx, []string{"gradient_descent", "calculus", "linear_algebra"})
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 3)
	assert.ElementsMatch(t, []core.Edge{
		{From: "calculus", To: "gradient_descent"},
		{From: "linear_algebra", To: "gradient_descent"},
	}, sub.Edges)

	_, err = s.GetSubgraph(ctx, []string{"nope"})
	assert.ErrorIs(t, err, core.ErrConceptNotFound)
}
