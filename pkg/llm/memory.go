package llm

import (
	"encoding/json"
	"sync"

	"github.com/xhad/docchat/internal/models"
)

// Memory is the ordered list of turns a session has exchanged so far.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	turns []models.Turn
}

// NewMemory seeds a memory with prior turns.
func NewMemory(turns []models.Turn) *Memory {
	return &Memory{turns: append([]models.Turn(nil), turns...)}
}

func (m *Memory) Append(turn models.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// Turns returns a copy of the recorded turns, oldest first.
func (m *Memory) Turns() []models.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Turn(nil), m.turns...)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Turns())
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var turns []models.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = turns
	return nil
}
