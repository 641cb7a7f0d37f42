// Package retrieval provides Retriever implementations over the
// curriculum corpus: a process-local keyword retriever for tests and
// demos, and a Qdrant backed vector retriever (retrieval/qdrant) for
// deployments. A retriever that returns no passages is not an error;
// agents degrade to general-knowledge answers.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mosaicedu/mosaic/core"
)

// Document is a corpus entry held by the in-memory retriever.
type Document struct {
	ID        string
	TopicArea string
	Text      string
}

// InMemoryRetriever ranks corpus documents by keyword overlap with the
// query. Deterministic: equal scores fall back to document id order.
type InMemoryRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

// NewInMemoryRetriever constructs a retriever over the given corpus.
func NewInMemoryRetriever(docs ...Document) *InMemoryRetriever {
	r := &InMemoryRetriever{}
	r.Add(docs...)
	return r
}

// Add appends documents to the corpus.
func (r *InMemoryRetriever) Add(docs ...Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, docs...)
}

// Query implements core.Retriever. An empty topicFilter matches every
// topic area.
func (r *InMemoryRetriever) Query(_ context.Context, text, topicFilter string, topK int) ([]core.Passage, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		passage core.Passage
	}
	var matches []scored
	for _, d := range r.docs {
		if topicFilter != "" && !strings.EqualFold(d.TopicArea, topicFilter) {
			continue
		}
		score := overlap(queryTokens, tokenize(d.Text))
		if score == 0 {
			continue
		}
		matches = append(matches, scored{passage: core.Passage{
			Text:     d.Text,
			Score:    score,
			SourceID: d.ID,
		}})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].passage.Score != matches[j].passage.Score {
			return matches[i].passage.Score > matches[j].passage.Score
		}
		return matches[i].passage.SourceID < matches[j].passage.SourceID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	out := make([]core.Passage, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.passage)
	}
	return out, nil
}

func overlap(query, doc map[string]bool) float64 {
	hits := 0
	for tok := range query {
		if doc[tok] {
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
