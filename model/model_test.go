package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockMatchesByRegistrationOrder(t *testing.T) {
	m := NewMock().
		Respond("classifier", "YES").
		Respond("gradient", "A brief answer about gradient descent.")

	resp, err := m.Generate(context.Background(), Request{
		Instructions: "You are a message classifier.",
		Input:        "Explain gradient descent",
	})
	require.NoError(t, err)
	assert.Equal(t, "YES", resp.Text)
}

func TestMockMatchesInput(t *testing.T) {
	m := NewMock().Respond("gradient", "about gradients")

	resp, err := m.Generate(context.Background(), Request{Input: "tell me about gradient descent"})
	require.NoError(t, err)
	assert.Equal(t, "about gradients", resp.Text)
}

func TestMockEchoesUnmatched(t *testing.T) {
	m := NewMock()
	resp, err := m.Generate(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", resp.Text)
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	_, err := m.Generate(context.Background(), Request{Input: "one"})
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), Request{Input: "two"})
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "one", calls[0].Input)
	assert.Equal(t, "two", calls[1].Input)
}

func TestGenerateWithFallbackUsesPrimary(t *testing.T) {
	m := NewMock().Respond("full prompt", "primary answer")

	resp, err := GenerateWithFallback(context.Background(), m,
		Request{Instructions: "full prompt"},
		Request{Instructions: "simplified"},
	)
	require.NoError(t, err)
	assert.Equal(t, "primary answer", resp.Text)
}

func TestGenerateWithFallbackRetriesOnce(t *testing.T) {
	boom := errors.New("boom")
	m := &flaky{failures: 1, inner: NewMock().Respond("simplified", "fallback answer"), err: boom}

	resp, err := GenerateWithFallback(context.Background(), m,
		Request{Instructions: "full prompt"},
		Request{Instructions: "simplified"},
	)
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.Text)
}

func TestGenerateWithFallbackSurfacesSecondFailure(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock().Fail(boom)

	_, err := GenerateWithFallback(context.Background(), m, Request{}, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// flaky fails the first n calls then delegates to inner.
type flaky struct {
	failures int
	calls    int
	err      error
	inner    Model
}

func (f *flaky) Generate(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.inner.Generate(ctx, req)
}

func (f *flaky) Info() Info { return Info{Name: "flaky", Provider: "test"} }
