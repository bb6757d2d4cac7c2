package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tmc/langchaingo/llms/googleai"

	"umkmrag/app/agent"
	"umkmrag/app/service"
	"umkmrag/config"
	"umkmrag/loader"
	"umkmrag/model"
	"umkmrag/store"
)

type runtime struct {
	svc   *service.Service
	agent *agent.Agent
	close func()
}

// missingKeyGenerator lets offline commands (ingest with the hash embedder,
// status) run without a key; asking a question reports the missing key.
type missingKeyGenerator struct {
	err error
}

func (g missingKeyGenerator) Generate(context.Context, string, string) (string, error) {
	return "", g.err
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger) (*runtime, error) {
	var client *googleai.GoogleAI
	if cfg.APIKey != "" {
		c, err := model.NewGoogleClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		client = c
	}

	var embedder model.EmbedderInterface
	switch cfg.EmbeddingProvider {
	case config.ProviderHash:
		embedder = model.NewHashEmbedder(0)
	default:
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, fmt.Errorf("embedding provider %s: %w", cfg.EmbeddingProvider, err)
		}
		e, err := model.NewGoogleEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingCache)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	var generator model.Generator = missingKeyGenerator{err: cfg.RequireAPIKey()}
	if client != nil {
		generator = model.NewGoogleGenerator(client)
	}

	closeFn := func() {}
	var backend store.Backend
	switch cfg.IndexBackend {
	case config.BackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString(), logger.WithPrefix("pgvector"))
		if err != nil {
			return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
		}
		backend = pg
		closeFn = func() { pg.Close() }
	default:
		backend = store.NewFileBackend(cfg.IndexDir, model.Name(embedder), logger.WithPrefix("index"))
	}

	policy := store.ReuseHandle
	if cfg.ReopenPerQuery {
		policy = store.ReopenEachQuery
	}
	manager := store.NewManager(backend, embedder, store.ManagerOptions{
		Policy:   policy,
		MinScore: cfg.MinScore,
		Logger:   logger,
	})

	ag := agent.New(generator, agent.NewModelCell(cfg.Model), agent.Options{
		Fallbacks:   cfg.FallbackModels,
		CountTokens: cfg.CountPromptTokens,
		Logger:      logger,
	})
	ldr := loader.New(loader.Options{UploadDir: cfg.UploadDir, Logger: logger})

	logger.Debug("runtime ready",
		"embedding", model.Name(embedder),
		"index_backend", cfg.IndexBackend,
		"model", cfg.Model,
		"parsers", ldr.Backends())

	return &runtime{
		svc:   service.New(ldr, manager, ag, service.Options{UploadDir: cfg.UploadDir, Logger: logger}),
		agent: ag,
		close: closeFn,
	}, nil
}
