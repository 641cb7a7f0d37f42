// Package mosaic provides a high-level façade over the tutoring pipeline
// (orchestrator, agents and stores) enabling rapid construction of a
// working tutor. Most applications interact with this package by:
//  1. Creating a Tutor via New() with a model and a curriculum
//  2. Sending student messages with Chat()
//  3. Reading per-student progress with Progress()
//
// The façade wires in-memory stores by default, which are safe for local
// development and testing; production deployments supply the Neo4j,
// Redis and Qdrant backed implementations through the option setters.
package mosaic

import (
	"context"

	"github.com/mosaicedu/mosaic/agent"
	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/graph"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/memory"
	"github.com/mosaicedu/mosaic/model"
	"github.com/mosaicedu/mosaic/orchestrator"
	"github.com/mosaicedu/mosaic/retrieval"
	"github.com/mosaicedu/mosaic/session"
)

// Options configure the Tutor façade. Every dependency has an in-memory
// default; override the ones backed by real infrastructure.
type Options struct {
	// Graph is the knowledge graph store. Defaults to an in-memory store
	// loaded with the curriculum passed to New.
	Graph core.GraphStore
	// Memory is the long-term memory gateway. Defaults to in-memory.
	Memory core.MemoryGateway
	// Retriever serves curriculum passages. Defaults to an in-memory
	// keyword retriever loaded with the documents passed to New.
	Retriever core.Retriever
	// Sessions persists per-student sessions. Defaults to in-memory.
	Sessions core.SessionStore
	// PassThreshold and PartialFloor tune the scoring policy.
	PassThreshold int
	PartialFloor  int
	Logger        logging.Logger
}

// Tutor bundles a ready-to-use tutoring pipeline.
type Tutor struct {
	orch *orchestrator.Orchestrator
}

// New constructs a Tutor around the given model. The curriculum concepts
// and documents seed the default in-memory graph and retriever; they are
// ignored when those stores are overridden.
func New(m model.Model, concepts []core.ConceptNode, docs []retrieval.Document, optFns ...func(o *Options)) (*Tutor, error) {
	opts := Options{
		PassThreshold: 70,
		PartialFloor:  40,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Graph == nil {
		store := graph.NewInMemoryStore()
		if err := store.Load(concepts); err != nil {
			return nil, err
		}
		opts.Graph = store
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryGateway()
	}
	if opts.Retriever == nil {
		opts.Retriever = retrieval.NewInMemoryRetriever(docs...)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	solver := agent.NewSolver(m, opts.Graph, opts.Memory, opts.Retriever, func(o *agent.SolverOptions) {
		o.Logger = opts.Logger
	})
	assessor := agent.NewAssessor(m, opts.Graph, opts.Memory, func(o *agent.AssessorOptions) {
		o.PassThreshold = opts.PassThreshold
		o.Logger = opts.Logger
	})
	feedback := agent.NewFeedback(m, opts.Graph, opts.Memory, func(o *agent.FeedbackOptions) {
		o.PassThreshold = opts.PassThreshold
		o.PartialFloor = opts.PartialFloor
		o.Logger = opts.Logger
	})

	orch := orchestrator.New(opts.Sessions, opts.Graph, solver, assessor, feedback, m,
		func(o *orchestrator.Options) { o.Logger = opts.Logger })

	return &Tutor{orch: orch}, nil
}

// Chat processes one student message and returns the tutor's reply.
// Clarification requests surface as *core.ClarificationError.
func (t *Tutor) Chat(ctx context.Context, studentID, message string) (*orchestrator.Reply, error) {
	return t.orch.HandleTurn(ctx, studentID, message)
}

// Progress returns the student's colored knowledge graph view.
func (t *Tutor) Progress(ctx context.Context, studentID string) (*core.GraphView, error) {
	return t.orch.Visualization(ctx, studentID)
}
