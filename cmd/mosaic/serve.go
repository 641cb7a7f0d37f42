package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mosaicedu/mosaic/agent"
	"github.com/mosaicedu/mosaic/config"
	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/graph"
	graphneo4j "github.com/mosaicedu/mosaic/graph/neo4j"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/memory"
	memoryredis "github.com/mosaicedu/mosaic/memory/redis"
	"github.com/mosaicedu/mosaic/model"
	"github.com/mosaicedu/mosaic/model/anthropic"
	"github.com/mosaicedu/mosaic/model/openai"
	"github.com/mosaicedu/mosaic/orchestrator"
	"github.com/mosaicedu/mosaic/retrieval"
	retrievalqdrant "github.com/mosaicedu/mosaic/retrieval/qdrant"
	"github.com/mosaicedu/mosaic/server"
	"github.com/mosaicedu/mosaic/session"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    cmd.OutOrStdout(),
		Component: "mosaic",
	})

	llm, err := buildModel(cfg)
	if err != nil {
		return err
	}

	graphStore, cleanupGraph, err := buildGraph(ctx, cfg, curriculumPath)
	if err != nil {
		return err
	}
	defer cleanupGraph()

	memGateway, cleanupMemory, err := buildMemory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupMemory()

	retriever, cleanupRetrieval, err := buildRetriever(cfg, curriculumPath)
	if err != nil {
		return err
	}
	defer cleanupRetrieval()

	solver := agent.NewSolver(llm, graphStore, memGateway, retriever, func(o *agent.SolverOptions) {
		o.TopK = cfg.Retrieval.TopK
		o.RecallLimit = cfg.Tutor.RecallLimit
		o.Logger = logger.WithComponent("solver")
	})
	assessor := agent.NewAssessor(llm, graphStore, memGateway, func(o *agent.AssessorOptions) {
		o.PassThreshold = cfg.Tutor.PassThreshold
		o.RecallLimit = cfg.Tutor.RecallLimit
		o.Logger = logger.WithComponent("assessor")
	})
	feedback := agent.NewFeedback(llm, graphStore, memGateway, func(o *agent.FeedbackOptions) {
		o.PassThreshold = cfg.Tutor.PassThreshold
		o.PartialFloor = cfg.Tutor.PartialFloor
		o.Logger = logger.WithComponent("feedback")
	})

	orch := orchestrator.New(session.NewInMemoryStore(), graphStore, solver, assessor, feedback, llm,
		func(o *orchestrator.Options) { o.Logger = logger.WithComponent("orchestrator") })

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.New(orch, func(o *server.Options) { o.Logger = logger.WithComponent("server") }).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "mock":
		return model.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func buildGraph(ctx context.Context, cfg *config.Config, curriculum string) (core.GraphStore, func(), error) {
	switch cfg.Graph.Backend {
	case "neo4j":
		store, err := graphneo4j.NewStore(func(o *graphneo4j.Options) {
			o.URI = cfg.Graph.URI
			o.Username = cfg.Graph.Username
			o.Password = cfg.Graph.Password
			o.Database = cfg.Graph.Database
		})
		if err != nil {
			return nil, nil, err
		}
		if curriculum != "" {
			nodes, _, err := loadCurriculum(curriculum)
			if err != nil {
				return nil, nil, err
			}
			if err := store.Ingest(ctx, nodes); err != nil {
				return nil, nil, err
			}
		}
		return store, func() { _ = store.Close(context.Background()) }, nil
	default:
		store := graph.NewInMemoryStore()
		if curriculum != "" {
			nodes, _, err := loadCurriculum(curriculum)
			if err != nil {
				return nil, nil, err
			}
			if err := store.Load(nodes); err != nil {
				return nil, nil, err
			}
		}
		return store, func() {}, nil
	}
}

func buildMemory(ctx context.Context, cfg *config.Config) (core.MemoryGateway, func(), error) {
	switch cfg.Memory.Backend {
	case "redis":
		gw, err := memoryredis.NewGateway(ctx, func(o *memoryredis.Options) {
			o.Addr = cfg.Memory.Addr
			o.Password = cfg.Memory.Password
			o.DB = cfg.Memory.DB
			o.MaxFacts = int64(cfg.Memory.MaxFacts)
		})
		if err != nil {
			return nil, nil, err
		}
		return gw, func() { _ = gw.Close() }, nil
	default:
		return memory.NewInMemoryGateway(), func() {}, nil
	}
}

func buildRetriever(cfg *config.Config, curriculum string) (core.Retriever, func(), error) {
	switch cfg.Retrieval.Backend {
	case "qdrant":
		embedder := openai.NewEmbedder(func(o *openai.EmbedderOptions) {
			o.APIKey = cfg.Model.APIKey
		})
		ret, err := retrievalqdrant.NewRetriever(embedder, func(o *retrievalqdrant.Options) {
			o.Host = cfg.Retrieval.Host
			o.Port = cfg.Retrieval.Port
			o.APIKey = cfg.Retrieval.APIKey
			o.Collection = cfg.Retrieval.Collection
		})
		if err != nil {
			return nil, nil, err
		}
		return ret, func() { _ = ret.Close() }, nil
	default:
		ret := retrieval.NewInMemoryRetriever()
		if curriculum != "" {
			_, docs, err := loadCurriculum(curriculum)
			if err != nil {
				return nil, nil, err
			}
			ret.Add(docs...)
		}
		return ret, func() {}, nil
	}
}
