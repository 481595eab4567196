package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr bool
	}{
		{name: "ollama default", config: ProviderConfig{Model: "mistral"}},
		{name: "ollama explicit", config: ProviderConfig{Provider: ProviderOllama, BaseURL: "http://localhost:11434", Model: "mistral"}},
		{name: "openai compatible", config: ProviderConfig{Provider: ProviderOpenAI, APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/"}},
		{name: "unknown", config: ProviderConfig{Provider: "bedrock"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewModel(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)
		})
	}
}

func TestNewEmbeddingClient(t *testing.T) {
	client, err := NewEmbeddingClient(ProviderConfig{Provider: ProviderOllama, Model: "nomic-embed-text:latest"})
	require.NoError(t, err)
	assert.NotNil(t, client)

	client, err = NewEmbeddingClient(ProviderConfig{Provider: ProviderOpenAI, APIKey: "test-key", EmbeddingModel: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewEmbeddingClient(ProviderConfig{Provider: "bedrock"})
	assert.Error(t, err)
}
