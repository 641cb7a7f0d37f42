package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// rule is one canned response matched by substring.
type rule struct {
	match    string
	response string
}

// Mock is a deterministic in-memory Model for tests and local development.
// Responses are registered against a substring matched first against the
// request instructions, then against the input; the earliest registered
// match wins. Unmatched requests echo the input.
type Mock struct {
	mu    sync.Mutex
	info  Info
	rules []rule
	err   error
	calls []Request
}

// NewMock constructs a Mock model.
func NewMock() *Mock {
	return &Mock{info: Info{Name: "mock", Provider: "mock"}}
}

// Respond registers a canned response for requests whose instructions or
// input contain match.
func (m *Mock) Respond(match, response string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{match: match, response: response})
	return m
}

// Fail makes every subsequent Generate call return err (nil restores
// normal operation).
func (m *Mock) Fail(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Calls returns a copy of every request seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Model.
func (m *Mock) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.rules {
		if strings.Contains(req.Instructions, r.match) || strings.Contains(req.Input, r.match) {
			return &Response{Text: r.response, FinishReason: "stop"}, nil
		}
	}
	return &Response{Text: fmt.Sprintf("Mock response to: %s", req.Input), FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
