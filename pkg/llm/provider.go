package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and addresses a model backend.
type ProviderConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

// NewModel returns a generation model for the configured provider.
func NewModel(config ProviderConfig) (llms.Model, error) {
	switch config.Provider {
	case "", ProviderOllama:
		llm, err := newOllama(config)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case ProviderOpenAI:
		llm, err := newOpenAI(config)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

// NewEmbeddingClient returns an embedding backend for the configured provider.
func NewEmbeddingClient(config ProviderConfig) (embeddings.EmbedderClient, error) {
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = config.Model
	}

	switch config.Provider {
	case "", ProviderOllama:
		config.Model = config.EmbeddingModel
		llm, err := newOllama(config)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case ProviderOpenAI:
		llm, err := newOpenAI(config)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

func newOllama(config ProviderConfig) (*ollama.LLM, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return llm, nil
}

func newOpenAI(config ProviderConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(config.EmbeddingModel))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return llm, nil
}
