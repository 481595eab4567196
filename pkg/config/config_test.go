package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5
  language: "French"

embedder:
  batch_size: 8

store:
  type: "pgvector"
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 384

processor:
  chunk_size: 500
  chunk_overlap: 100

retriever:
  top_k: 6

history:
  type: "redis"
  redis_url: "redis://localhost:6379/0"

server:
  port: 9090
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, *config.LLM.Temperature)
	assert.Equal(t, "French", config.LLM.Language)

	// Embedder inherits the LLM provider and endpoint
	assert.Equal(t, "ollama", config.Embedder.Provider)
	assert.Equal(t, "http://localhost:11434", config.Embedder.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedder.Model)
	assert.Equal(t, 8, config.Embedder.BatchSize)

	assert.Equal(t, "pgvector", config.Store.Type)
	assert.Equal(t, "postgres://localhost:5432/test", config.Store.URL)
	assert.Equal(t, "test_chunks", config.Store.TableName)
	assert.Equal(t, 384, config.Store.VectorDim)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 100, *config.Processor.ChunkOverlap)
	assert.Equal(t, 6, config.Retriever.TopK)
	assert.Equal(t, "redis", config.History.Type)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_ExplicitZeroValues(t *testing.T) {
	tests := []struct {
		name        string
		configData  string
		chunkSize   int
		overlap     int
		temperature float64
	}{
		{
			name:        "zero overlap and temperature",
			configData:  "llm:\n  temperature: 0\nprocessor:\n  chunk_size: 300\n  chunk_overlap: 0\n",
			chunkSize:   300,
			overlap:     0,
			temperature: 0,
		},
		{
			name:        "chunk size alone",
			configData:  "processor:\n  chunk_size: 100\n",
			chunkSize:   100,
			overlap:     20,
			temperature: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.configData), 0644))

			config, err := LoadConfig(configPath)
			require.NoError(t, err)

			assert.Equal(t, tt.chunkSize, config.Processor.ChunkSize)
			require.NotNil(t, config.Processor.ChunkOverlap)
			assert.Equal(t, tt.overlap, *config.Processor.ChunkOverlap)
			require.NotNil(t, config.LLM.Temperature)
			assert.Equal(t, tt.temperature, *config.LLM.Temperature)
			assert.Empty(t, config.Validate())
		})
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm: [unclosed"), 0644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "English", config.LLM.Language)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, *config.Processor.ChunkOverlap)
	assert.Equal(t, 0.7, *config.LLM.Temperature)
	assert.Equal(t, 4, config.Retriever.TopK)
	assert.Equal(t, "memory", config.Store.Type)
	assert.Equal(t, "file", config.History.Type)
	assert.Equal(t, "users.json", config.Users.Path)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		config := Config{}
		applyDefaults(&config)
		return config
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid llm",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 10000
				temperature := 3.0
				c.LLM.Temperature = &temperature
			},
			errorMessages: []string{
				"llm.base_url: invalid base URL",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
				c.LLM.BaseURL = ""
			},
			errorMessages: []string{
				"llm.api_key: API key is required for the openai provider",
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Embedder.Provider = "bedrock"
			},
			errorMessages: []string{
				"embedder.provider: unknown provider: bedrock",
			},
		},
		{
			name: "overlap not below chunk size",
			mutate: func(c *Config) {
				overlap := c.Processor.ChunkSize
				c.Processor.ChunkOverlap = &overlap
			},
			errorMessages: []string{
				"processor.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
			},
		},
		{
			name: "pgvector without url",
			mutate: func(c *Config) {
				c.Store.Type = "pgvector"
				c.Store.VectorDim = -1
			},
			errorMessages: []string{
				"store.url: database URL is required for the pgvector store",
				"store.vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "redis history without url",
			mutate: func(c *Config) {
				c.History.Type = "redis"
				c.Server.Port = 70000
			},
			errorMessages: []string{
				"history.redis_url: redis URL is required for the redis history store",
				"server.port: port must be between 1 and 65535",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("REDIS_URL", "redis://env-redis:6379/1")
	t.Setenv("PORT", "5000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "redis://env-redis:6379/1", config.History.RedisURL)
	assert.Equal(t, 5000, config.Server.Port)
}

func TestEnvironmentOverrides_OpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config := &Config{LLM: LLMConfig{Provider: "openai"}}
	mergeWithEnv(config)
	applyDefaults(config)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "openai", config.Embedder.Provider)
	assert.Equal(t, "sk-test", config.Embedder.APIKey)
	assert.Equal(t, "text-embedding-3-small", config.Embedder.Model)
	assert.Empty(t, config.Validate())
}
