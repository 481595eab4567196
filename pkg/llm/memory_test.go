package llm

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docchat/internal/models"
)

func TestMemory_CopiesOnReadAndSeed(t *testing.T) {
	seed := []models.Turn{{Message: "hi", Answer: "hello"}}
	m := NewMemory(seed)
	seed[0].Answer = "changed"

	turns := m.Turns()
	assert.Equal(t, "hello", turns[0].Answer)

	turns[0].Message = "mutated"
	assert.Equal(t, "hi", m.Turns()[0].Message)
}

func TestMemory_ConcurrentAppend(t *testing.T) {
	m := NewMemory(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Append(models.Turn{Message: fmt.Sprintf("q%d", i), Answer: "a"})
			_ = m.Turns()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
}

func TestMemory_JSON(t *testing.T) {
	m := NewMemory([]models.Turn{{Message: "q", Answer: "a"}})

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"message":"q","answer":"a"}]`, string(data))

	restored := NewMemory(nil)
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, m.Turns(), restored.Turns())
}
