package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRememberAndRecall(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway()

	require.NoError(t, g.Remember(ctx, "alice", "Alice struggles with chain rule notation"))
	require.NoError(t, g.Remember(ctx, "alice", "Alice prefers concrete numeric examples"))
	require.NoError(t, g.Remember(ctx, "alice", "Alice mastered basic algebra quickly"))

	facts, err := g.Recall(ctx, "alice", "chain rule practice", 5)
	require.NoError(t, err)
	require.NotEmpty(t, facts)
	assert.Contains(t, facts[0].Content, "chain rule")
}

func TestRecallIsPerStudent(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway()

	require.NoError(t, g.Remember(ctx, "alice", "Alice struggles with derivatives"))

	facts, err := g.Recall(ctx, "bob", "derivatives", 5)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestRecallHonorsLimit(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway()

	require.NoError(t, g.Remember(ctx, "alice", "gradient fact one"))
	require.NoError(t, g.Remember(ctx, "alice", "gradient fact two"))
	require.NoError(t, g.Remember(ctx, "alice", "gradient fact three"))

	facts, err := g.Recall(ctx, "alice", "gradient", 2)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestRecallIsDeterministic(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway()

	require.NoError(t, g.Remember(ctx, "alice", "gradient descent confuses the student"))
	require.NoError(t, g.Remember(ctx, "alice", "gradient magnitude was fine"))

	first, err := g.Recall(ctx, "alice", "gradient descent", 5)
	require.NoError(t, err)
	second, err := g.Recall(ctx, "alice", "gradient descent", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRememberIgnoresBlankFacts(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway()

	require.NoError(t, g.Remember(ctx, "alice", "   "))
	facts, err := g.Recall(ctx, "alice", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestRankFacts(t *testing.T) {
	stored := []string{
		"student likes visual explanations",
		"derivatives and gradients were hard",
		"completely unrelated note",
	}

	facts := RankFacts(stored, "gradients derivatives", 10)
	require.Len(t, facts, 1)
	assert.Equal(t, "derivatives and gradients were hard", facts[0].Content)
	assert.Equal(t, 1.0, facts[0].Score)

	assert.Nil(t, RankFacts(stored, "", 10))
	assert.Nil(t, RankFacts(stored, "gradients", 0))
}
