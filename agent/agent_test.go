package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/graph"
	"github.com/mosaicedu/mosaic/retrieval"
)

var errBackend = errors.New("backend down")

// testGraph loads the shared test curriculum: algebra feeds calculus and
// linear_algebra, both feed gradient_descent, which feeds backprop.
func testGraph(t *testing.T) *graph.InMemoryStore {
	t.Helper()
	g := graph.NewInMemoryStore()
	require.NoError(t, g.Load([]core.ConceptNode{
		{ID: "algebra", Name: "Algebra", TopicArea: "math"},
		{ID: "linear_algebra", Name: "Linear Algebra", TopicArea: "math", Prereqs: []string{"algebra"}},
		{ID: "calculus", Name: "Calculus", TopicArea: "math", Prereqs: []string{"algebra"}},
		{ID: "gradient_descent", Name: "Gradient Descent", TopicArea: "ml", Prereqs: []string{"calculus", "linear_algebra"}},
		{ID: "backprop", Name: "Backpropagation", TopicArea: "ml", Prereqs: []string{"gradient_descent"}},
	}))
	return g
}

func testRetriever() *retrieval.InMemoryRetriever {
	return retrieval.NewInMemoryRetriever(
		retrieval.Document{ID: "doc-1", TopicArea: "ml", Text: "Gradient descent minimizes a loss function."},
		retrieval.Document{ID: "doc-2", TopicArea: "math", Text: "Calculus studies rates of change."},
	)
}

func mustState(t *testing.T, g core.GraphStore, studentID, conceptID string) core.MasteryState {
	t.Helper()
	st, err := g.GetState(context.Background(), studentID, conceptID)
	require.NoError(t, err)
	return st
}

func forceState(t *testing.T, g core.GraphStore, studentID, conceptID string, path ...core.MasteryState) {
	t.Helper()
	for _, st := range path {
		require.NoError(t, g.SetState(context.Background(), studentID, conceptID, st))
	}
}

// failingGraph wraps a GraphStore and fails every SetState.
type failingGraph struct {
	core.GraphStore
}

func (f *failingGraph) SetState(context.Context, string, string, core.MasteryState) error {
	return errBackend
}

// failingRetriever fails every query.
type failingRetriever struct{}

func (failingRetriever) Query(context.Context, string, string, int) ([]core.Passage, error) {
	return nil, errBackend
}
