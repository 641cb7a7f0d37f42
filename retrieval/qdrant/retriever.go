// Package qdrant implements core.Retriever on a Qdrant vector store.
// Queries are embedded by an external Embedder and searched against the
// curriculum collection; passages carry a topic_area payload field used
// for filtered retrieval.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/mosaicedu/mosaic/core"
)

// Embedder turns query text into the vector space the collection was
// indexed in. Embedding models live outside this package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configure the Qdrant retriever.
type Options struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Retriever is a Qdrant backed core.Retriever.
type Retriever struct {
	client   *qdrant.Client
	embedder Embedder
	opts     Options
}

// NewRetriever connects to Qdrant and returns a retriever.
func NewRetriever(embedder Embedder, optFns ...func(o *Options)) (*Retriever, error) {
	opts := Options{
		Host:       "localhost",
		Port:       6334,
		Collection: "curriculum",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &Retriever{client: client, embedder: embedder, opts: opts}, nil
}

// NewRetrieverFromClient wraps an existing client.
func NewRetrieverFromClient(client *qdrant.Client, embedder Embedder, optFns ...func(o *Options)) *Retriever {
	opts := Options{Collection: "curriculum"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Retriever{client: client, embedder: embedder, opts: opts}
}

// Close releases the underlying client.
func (r *Retriever) Close() error {
	return r.client.Close()
}

// Query implements core.Retriever. An empty topicFilter searches the
// whole collection.
func (r *Retriever) Query(ctx context.Context, text, topicFilter string, topK int) ([]core.Passage, error) {
	if topK <= 0 {
		return nil, nil
	}
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	query := &qdrant.QueryPoints{
		CollectionName: r.opts.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if topicFilter != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("topic_area", topicFilter),
			},
		}
	}

	points, err := r.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	passages := make([]core.Passage, 0, len(points))
	for _, p := range points {
		passage := core.Passage{Score: float64(p.GetScore())}
		if v, ok := p.GetPayload()["text"]; ok {
			passage.Text = v.GetStringValue()
		}
		if v, ok := p.GetPayload()["source_id"]; ok {
			passage.SourceID = v.GetStringValue()
		}
		passages = append(passages, passage)
	}
	return passages, nil
}
