package llm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string
	Model          string
	BaseURL        string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	Language       string
	SystemTemplate string
}

func (c *ChatConfig) applyDefaults() error {
	if c.Model == "" {
		c.Model = "mistral"
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	} else if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Language == "" {
		c.Language = "English"
	}
	if c.SystemTemplate == "" {
		c.SystemTemplate = DefaultSystemTemplate
	}
	return nil
}

// NewModelWithConfig connects to the generation model named by config.
func NewModelWithConfig(config ChatConfig) (llms.Model, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return NewModel(ProviderConfig{
		Provider: config.Provider,
		BaseURL:  config.BaseURL,
		APIKey:   config.APIKey,
		Model:    config.Model,
	})
}

// ChatEngine answers questions for one session: it retrieves context,
// replays the session's prior turns and records each new turn.
type ChatEngine struct {
	config    ChatConfig
	llm       llms.Model
	prompt    prompts.PromptTemplate
	retriever types.Retriever
	memory    *Memory
	sessionID string
	history   types.HistoryStore
}

type EngineOption func(*ChatEngine)

// WithHistory persists every completed turn under sessionID.
func WithHistory(sessionID string, store types.HistoryStore) EngineOption {
	return func(ce *ChatEngine) {
		ce.sessionID = sessionID
		ce.history = store
	}
}

// NewChatEngine creates an engine bound to a retriever and memory. A nil
// memory starts empty.
func NewChatEngine(config ChatConfig, model llms.Model, retriever types.Retriever, memory *Memory, opts ...EngineOption) (*ChatEngine, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if memory == nil {
		memory = NewMemory(nil)
	}

	ce := &ChatEngine{
		config:    config,
		llm:       model,
		prompt:    newSystemPrompt(config.SystemTemplate),
		retriever: retriever,
		memory:    memory,
	}
	for _, opt := range opts {
		opt(ce)
	}
	return ce, nil
}

func (ce *ChatEngine) Memory() *Memory {
	return ce.memory
}

func (ce *ChatEngine) Retriever() types.Retriever {
	return ce.retriever
}

// Ask answers message from the retrieved context and the conversation so far.
func (ce *ChatEngine) Ask(ctx context.Context, message string) (string, error) {
	return ce.ask(ctx, message)
}

// AskStream is Ask with each generated fragment passed to onChunk as it
// arrives. The full answer is still returned.
func (ce *ChatEngine) AskStream(ctx context.Context, message string, onChunk func(string) error) (string, error) {
	return ce.ask(ctx, message, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		return onChunk(string(chunk))
	}))
}

func (ce *ChatEngine) ask(ctx context.Context, message string, extra ...llms.CallOption) (string, error) {
	if ce.retriever == nil {
		return "", types.ErrSessionNotInitialized
	}

	passages, err := ce.retriever.Retrieve(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	content, err := ce.buildMessages(message, passages)
	if err != nil {
		return "", err
	}

	opts := append([]llms.CallOption{
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	}, extra...)

	resp, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", &types.UpstreamError{Op: "generate", Err: err}
	}

	answer, err := firstChoice(resp)
	if err != nil {
		return "", &types.UpstreamError{Op: "generate", Err: err}
	}

	turn := models.Turn{Message: message, Answer: answer}
	ce.memory.Append(turn)

	if ce.history != nil {
		if err := ce.history.Append(ctx, ce.sessionID, turn); err != nil {
			log.Printf("Failed to persist history for session %s: %v", ce.sessionID, err)
		}
	}

	return answer, nil
}

func (ce *ChatEngine) buildMessages(message string, passages []string) ([]llms.MessageContent, error) {
	system, err := renderSystemPrompt(ce.prompt, ce.config.Language, passages)
	if err != nil {
		return nil, err
	}

	turns := ce.memory.Turns()
	content := make([]llms.MessageContent, 0, 2*len(turns)+2)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range turns {
		content = append(content,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.Message),
			llms.TextParts(llms.ChatMessageTypeAI, turn.Answer),
		)
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, message))
	return content, nil
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("no response from model")
	}
	if resp.Choices[0].Content == "" {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Content, nil
}
