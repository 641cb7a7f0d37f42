// Package memory provides MemoryGateway implementations backing the
// shared long-term memory contract: a process-local store for tests and
// single-node runs, and a Redis backed gateway (memory/redis) for
// deployments. Facts are keyed by student id; recall never crosses
// students.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mosaicedu/mosaic/core"
)

// InMemoryGateway stores facts per student in process memory. Recall
// ranks facts by token overlap with the query, so repeated calls with the
// same inputs return the same facts in the same order.
type InMemoryGateway struct {
	mu    sync.RWMutex
	facts map[string][]string // studentID -> facts, insertion order
}

// NewInMemoryGateway constructs an empty gateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{facts: make(map[string][]string)}
}

// Remember implements core.MemoryGateway. Facts are append-only.
func (g *InMemoryGateway) Remember(_ context.Context, studentID, fact string) error {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.facts[studentID] = append(g.facts[studentID], fact)
	return nil
}

// Recall implements core.MemoryGateway: the student's facts scored by
// query relevance, best first, at most limit entries.
func (g *InMemoryGateway) Recall(_ context.Context, studentID, query string, limit int) ([]core.Fact, error) {
	if limit <= 0 {
		return nil, nil
	}
	g.mu.RLock()
	stored := append([]string(nil), g.facts[studentID]...)
	g.mu.RUnlock()

	return RankFacts(stored, query, limit), nil
}

// RankFacts scores stored facts against a query by token overlap and
// returns the top matches. Zero-overlap facts are dropped; ties keep
// insertion order so recall is deterministic. Shared with the Redis
// gateway, which fetches raw facts and ranks client-side.
func RankFacts(stored []string, query string, limit int) []core.Fact {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || limit <= 0 {
		return nil
	}

	type scored struct {
		fact  core.Fact
		index int
	}
	var matches []scored
	for i, f := range stored {
		score := overlap(queryTokens, tokenize(f))
		if score == 0 {
			continue
		}
		matches = append(matches, scored{
			fact:  core.Fact{Content: f, Score: score},
			index: i,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].fact.Score != matches[j].fact.Score {
			return matches[i].fact.Score > matches[j].fact.Score
		}
		return matches[i].index < matches[j].index
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]core.Fact, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.fact)
	}
	return out
}

// overlap is the fraction of query tokens present in the fact.
func overlap(query, fact map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if fact[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) < 3 {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}
