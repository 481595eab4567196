package main

import (
	"context"
	"fmt"

	"github.com/xhad/docchat/internal/types"
	cfgPkg "github.com/xhad/docchat/pkg/config"
	"github.com/xhad/docchat/pkg/history"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/processor"
	"github.com/xhad/docchat/pkg/rag"
	"github.com/xhad/docchat/pkg/session"
	"github.com/xhad/docchat/pkg/store"
	"github.com/xhad/docchat/pkg/users"
)

// app holds the components shared by the server and the terminal chat.
type app struct {
	service *rag.Service
	users   *users.Store
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *cfgPkg.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	chatConfig := llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: *cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Language:    cfg.LLM.Language,
	}
	model, err := llm.NewModelWithConfig(chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		BatchSize: cfg.Embedder.BatchSize,
		RateLimit: cfg.Embedder.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: *cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	var indexes types.IndexBuilder = store.MemoryBuilder{}
	if cfg.Store.Type == "pgvector" {
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.closers = append(a.closers, vs.Close)
		indexes = vs
	}

	var hist types.HistoryStore
	switch cfg.History.Type {
	case "redis":
		rs, err := history.NewRedisStoreFromURL(ctx, cfg.History.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		a.closers = append(a.closers, func() { rs.Close() })
		hist = rs
	default:
		fs, err := history.NewFileStore(cfg.History.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		hist = fs
	}

	registry := session.NewRegistry(func(id string, r types.Retriever, memory *llm.Memory) (*llm.ChatEngine, error) {
		return llm.NewChatEngine(chatConfig, model, r, memory, llm.WithHistory(id, hist))
	}, hist)

	a.service, err = rag.NewWithConfig(rag.ServiceConfig{
		Processor: proc,
		Embedder:  embedder,
		Indexes:   indexes,
		Registry:  registry,
		History:   hist,
		TopK:      cfg.Retriever.TopK,
	})
	if err != nil {
		return nil, err
	}

	a.users = users.NewStore(cfg.Users.Path)
	return a, nil
}
