package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/llm"
)

// EngineFactory builds the chat engine for a session from its retriever
// and memory.
type EngineFactory func(sessionID string, retriever types.Retriever, memory *llm.Memory) (*llm.ChatEngine, error)

// Session is the state kept for one session id. A Session value is never
// mutated after registration; re-uploading replaces it.
type Session struct {
	ID        string
	Retriever types.Retriever
	Engine    *llm.ChatEngine
	Memory    *llm.Memory
	CreatedAt time.Time
	IndexedAt time.Time
}

// Registry maps session ids to their sessions. Entries are never evicted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  EngineFactory
	history  types.HistoryStore
}

// NewRegistry returns an empty registry. history may be nil, in which
// case new sessions start with an empty memory.
func NewRegistry(factory EngineFactory, history types.HistoryStore) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		history:  history,
	}
}

// Register installs a session bound to retriever, replacing any previous
// one. The conversation memory carries over from the replaced session, or
// is seeded from the history store for a new id.
func (r *Registry) Register(ctx context.Context, id string, retriever types.Retriever) (*Session, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}

	now := time.Now()
	createdAt := now

	r.mu.RLock()
	prev := r.sessions[id]
	r.mu.RUnlock()

	var memory *llm.Memory
	if prev != nil {
		memory = prev.Memory
		createdAt = prev.CreatedAt
	} else {
		memory = llm.NewMemory(r.loadHistory(ctx, id))
	}

	engine, err := r.factory(id, retriever, memory)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat engine: %w", err)
	}

	s := &Session{
		ID:        id,
		Retriever: retriever,
		Engine:    engine,
		Memory:    memory,
		CreatedAt: createdAt,
		IndexedAt: now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	return s, nil
}

func (r *Registry) loadHistory(ctx context.Context, id string) []models.Turn {
	if r.history == nil {
		return nil
	}
	turns, err := r.history.Load(ctx, id)
	if err != nil {
		log.Printf("Failed to load history for session %s: %v", id, err)
		return nil
	}
	return turns
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the registered session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}
