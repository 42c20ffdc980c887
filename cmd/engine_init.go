package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/extract"
	"github.com/scopewell/scope-copilot/internal/retrieval"
	"github.com/scopewell/scope-copilot/internal/schema"
	"github.com/scopewell/scope-copilot/internal/scope"
	"github.com/scopewell/scope-copilot/internal/store"
	"github.com/scopewell/scope-copilot/pkg/anthropic"
)

// engineEnv bundles everything a command needs to run the engine.
type engineEnv struct {
	Engine   *scope.Engine
	Registry *schema.Registry
	Store    store.Store

	index *retrieval.QdrantIndex
}

func (e *engineEnv) Close() {
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			zap.L().Warn("qdrant close failed", zap.Error(err))
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initEngine wires the registry, store, extraction backend, and optional
// retrieval index into an Engine.
func initEngine(ctx context.Context) (*engineEnv, error) {
	registry := schema.Default()
	if cfg.Schema.Dir != "" {
		if err := registry.LoadDir(cfg.Schema.Dir); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	extractor := extract.NewClaudeExtractor(
		anthropic.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		cfg.Engine.ExtractionRatePerSecond,
	)

	env := &engineEnv{Registry: registry, Store: st}

	// Retrieval is optional: without an embedding key the engine simply
	// asks its questions without past-project suggestions.
	var retriever retrieval.Retriever
	if cfg.Embedding.Key != "" && cfg.Qdrant.URL != "" {
		embedder := retrieval.NewOpenAIEmbedder(cfg.Embedding.Key, cfg.Embedding.BaseURL, cfg.Embedding.Model)
		index, err := retrieval.NewQdrantIndex(retrieval.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Dims:       cfg.Embedding.Dims,
		}, embedder)
		if err != nil {
			st.Close()
			return nil, err
		}
		env.index = index
		retriever = index
	} else {
		zap.L().Info("retrieval disabled, no embedding key or qdrant URL configured")
	}
	adapter := retrieval.NewAdapter(retriever, time.Duration(cfg.Engine.RetrievalTimeoutSecs)*time.Second)

	env.Engine = scope.NewEngine(cfg.Engine, registry, extractor, adapter, st)
	return env, nil
}

// initIndex wires just the retrieval index, for seeding.
func initIndex() (*retrieval.QdrantIndex, error) {
	if cfg.Embedding.Key == "" {
		return nil, eris.New("seed: embedding.key is required")
	}
	embedder := retrieval.NewOpenAIEmbedder(cfg.Embedding.Key, cfg.Embedding.BaseURL, cfg.Embedding.Model)
	return retrieval.NewQdrantIndex(retrieval.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Dims:       cfg.Embedding.Dims,
	}, embedder)
}
