// Package llmtest provides in-process stand-ins for generation and
// embedding backends.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// Model is an llms.Model that answers from Reply and records every request.
type Model struct {
	// Reply produces the answer for a request. Nil answers "answer N".
	Reply func(messages []llms.MessageContent) (string, error)

	mu    sync.Mutex
	calls [][]llms.MessageContent
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, messages)
	n := len(m.calls)
	m.mu.Unlock()

	text := fmt.Sprintf("answer %d", n)
	if m.Reply != nil {
		var err error
		if text, err = m.Reply(messages); err != nil {
			return nil, err
		}
	}

	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(text, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns the number of generation requests served.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastMessages returns the messages of the most recent request.
func (m *Model) LastMessages() []llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Text flattens the text parts of a message.
func Text(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "is": true, "of": true,
	"the": true, "to": true, "what": true, "which": true, "in": true,
}

// EmbeddingClient is an embeddings.EmbedderClient producing normalized
// bag-of-words vectors, so texts sharing words score close together.
type EmbeddingClient struct {
	Dim int
	// Err, when set, fails every request.
	Err error

	mu       sync.Mutex
	requests [][]string
}

func (c *EmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.requests = append(c.requests, append([]string(nil), texts...))
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = c.vector(text)
	}
	return vectors, nil
}

// Requests returns the batches received so far.
func (c *EmbeddingClient) Requests() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.requests...)
}

func (c *EmbeddingClient) vector(text string) []float32 {
	dim := c.Dim
	if dim <= 0 {
		dim = 1024
	}

	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// ErrUnavailable is a stock upstream failure.
var ErrUnavailable = errors.New("service unavailable")
