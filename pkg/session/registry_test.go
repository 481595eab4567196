package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docchat/internal/llmtest"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/session"
)

type fixedRetriever []string

func (r fixedRetriever) Retrieve(context.Context, string) ([]string, error) {
	return r, nil
}

type mapHistory map[string][]models.Turn

func (h mapHistory) Load(_ context.Context, id string) ([]models.Turn, error) {
	return h[id], nil
}

func (h mapHistory) Append(context.Context, string, models.Turn) error {
	return nil
}

type failingHistory struct{}

func (failingHistory) Load(context.Context, string) ([]models.Turn, error) {
	return nil, errors.New("unavailable")
}

func (failingHistory) Append(context.Context, string, models.Turn) error {
	return errors.New("unavailable")
}

func newFactory(model *llmtest.Model) session.EngineFactory {
	return func(id string, r types.Retriever, memory *llm.Memory) (*llm.ChatEngine, error) {
		return llm.NewChatEngine(llm.ChatConfig{}, model, r, memory)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), nil)

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), nil)

	s, err := reg.Register(context.Background(), "abc", fixedRetriever{"The sky is blue."})
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
	assert.Same(t, s.Memory, s.Engine.Memory())

	got, err := reg.Get("abc")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{"abc"}, reg.IDs())

	_, err = reg.Register(context.Background(), "abc", nil)
	assert.Error(t, err)
}

func TestRegistry_ReplacementKeepsMemory(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), nil)

	first, err := reg.Register(ctx, "abc", fixedRetriever{"old"})
	require.NoError(t, err)
	_, err = first.Engine.Ask(ctx, "q1")
	require.NoError(t, err)

	second, err := reg.Register(ctx, "abc", fixedRetriever{"new"})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, first.Memory, second.Memory)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 1, reg.Len())

	passages, err := second.Retriever.Retrieve(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, passages)
	assert.Equal(t, 1, second.Engine.Memory().Len())
}

func TestRegistry_SeedsMemoryFromHistory(t *testing.T) {
	history := mapHistory{"abc": {{Message: "earlier", Answer: "before"}}}
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), history)

	s, err := reg.Register(context.Background(), "abc", fixedRetriever{})
	require.NoError(t, err)
	assert.Equal(t, []models.Turn{{Message: "earlier", Answer: "before"}}, s.Memory.Turns())

	fresh, err := reg.Register(context.Background(), "new", fixedRetriever{})
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Memory.Len())
}

func TestRegistry_HistoryLoadFailureStartsEmpty(t *testing.T) {
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), failingHistory{})

	s, err := reg.Register(context.Background(), "abc", fixedRetriever{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Memory.Len())
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := session.NewRegistry(func(string, types.Retriever, *llm.Memory) (*llm.ChatEngine, error) {
		return nil, errors.New("boom")
	}, nil)

	_, err := reg.Register(context.Background(), "abc", fixedRetriever{})
	assert.Error(t, err)
	_, err = reg.Get("abc")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestRegistry_Concurrent(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry(newFactory(&llmtest.Model{}), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("s%d", i%5)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := reg.Register(ctx, id, fixedRetriever{id})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			if s, err := reg.Get(id); err == nil {
				assert.Equal(t, id, s.ID)
			}
			_ = reg.IDs()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4"}, reg.IDs())
}
