package config

import (
	"fmt"
	"net/url"

	"github.com/xhad/docchat/internal/types"
)

type ValidationError = types.ValidationError

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	errors = append(errors, validateProvider("llm", c.LLM.Provider, c.LLM.BaseURL, c.LLM.APIKey)...)

	if c.LLM.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if t := c.LLM.Temperature; t == nil || *t < 0 || *t > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Embedder config
	errors = append(errors, validateProvider("embedder", c.Embedder.Provider, c.Embedder.BaseURL, c.Embedder.APIKey)...)

	if c.Embedder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedder.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if o := c.Processor.ChunkOverlap; o == nil || *o < 0 || *o >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Retriever.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate Store config
	switch c.Store.Type {
	case "memory":
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "database URL is required for the pgvector store",
			})
		} else if _, err := url.Parse(c.Store.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
		if c.Store.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.type",
			Message: fmt.Sprintf("unknown store type: %s", c.Store.Type),
		})
	}

	// Validate History config
	switch c.History.Type {
	case "file":
		if c.History.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "history.dir",
				Message: "history directory is required",
			})
		}
	case "redis":
		if c.History.RedisURL == "" {
			errors = append(errors, ValidationError{
				Field:   "history.redis_url",
				Message: "redis URL is required for the redis history store",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "history.type",
			Message: fmt.Sprintf("unknown history type: %s", c.History.Type),
		})
	}

	if c.Users.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "users.path",
			Message: "users file path is required",
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Server.MaxUploadMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_upload_mb",
			Message: "max_upload_mb must be positive",
		})
	}

	return errors
}

func validateProvider(section, provider, baseURL, apiKey string) []ValidationError {
	var errors []ValidationError

	switch provider {
	case "ollama":
		if baseURL == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if apiKey == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".api_key",
				Message: "API key is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   section + ".provider",
			Message: fmt.Sprintf("unknown provider: %s", provider),
		})
	}

	if baseURL != "" {
		if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   section + ".base_url",
				Message: "invalid base URL",
			})
		}
	}

	return errors
}
