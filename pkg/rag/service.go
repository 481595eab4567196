// Package rag wires document processing, indexing, retrieval and the
// per-session chat engines into the operations exposed to clients.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/history"
	"github.com/xhad/docchat/pkg/processor"
	"github.com/xhad/docchat/pkg/retriever"
	"github.com/xhad/docchat/pkg/session"
)

type ServiceConfig struct {
	Processor *processor.Processor
	Embedder  types.Embedder
	Indexes   types.IndexBuilder
	Registry  *session.Registry
	History   types.HistoryStore
	TopK      int
}

type Service struct {
	processor *processor.Processor
	embedder  types.Embedder
	indexes   types.IndexBuilder
	registry  *session.Registry
	history   types.HistoryStore
	topK      int
}

// UploadResult summarizes an indexed upload.
type UploadResult struct {
	SessionID string
	Documents int
	Chunks    int
}

func NewWithConfig(config ServiceConfig) (*Service, error) {
	if config.Processor == nil || config.Embedder == nil || config.Indexes == nil || config.Registry == nil {
		return nil, errors.New("processor, embedder, index builder and registry are required")
	}
	if config.TopK <= 0 {
		config.TopK = retriever.DefaultK
	}

	return &Service{
		processor: config.Processor,
		embedder:  config.Embedder,
		indexes:   config.Indexes,
		registry:  config.Registry,
		history:   config.History,
		topK:      config.TopK,
	}, nil
}

func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Upload extracts, chunks and embeds docs, then installs a fresh index for
// the session. A failure before the index is built leaves the session as it
// was. A persistent index backend replaces the session's stored chunks when
// the build commits, so the previous session reads them even if installing
// the new engine then fails.
func (s *Service) Upload(ctx context.Context, sessionID string, docs []models.Document) (*UploadResult, error) {
	sessionID, err := history.NormalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, types.ValidationError{Field: "files", Message: "no files uploaded"}
	}

	chunks, err := s.processor.Process(ctx, docs)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	index, err := s.indexes.Build(ctx, sessionID, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	r, err := retriever.New(index, s.embedder, s.topK)
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.Register(ctx, sessionID, r); err != nil {
		return nil, err
	}

	log.Printf("Indexed %d documents into %d chunks for session %s (top %d, %d sessions active)",
		len(docs), len(chunks), sessionID, r.K(), s.registry.Len())

	return &UploadResult{SessionID: sessionID, Documents: len(docs), Chunks: len(chunks)}, nil
}

// Chat answers message within the session's conversation.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (string, error) {
	sess, err := s.lookup(sessionID, message)
	if err != nil {
		return "", err
	}
	return sess.Engine.Ask(ctx, message)
}

// ChatStream is Chat with incremental delivery of the answer.
func (s *Service) ChatStream(ctx context.Context, sessionID, message string, onChunk func(string) error) (string, error) {
	sess, err := s.lookup(sessionID, message)
	if err != nil {
		return "", err
	}
	return sess.Engine.AskStream(ctx, message, onChunk)
}

func (s *Service) lookup(sessionID, message string) (*session.Session, error) {
	sessionID, err := history.NormalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, types.ValidationError{Field: "message", Message: "message is required"}
	}

	sess, err := s.registry.Get(sessionID)
	if errors.Is(err, types.ErrSessionNotFound) {
		return nil, types.ErrSessionNotInitialized
	}
	return sess, err
}

// History returns the persisted turns of a session, or an empty list if
// it has none.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	sessionID, err := history.NormalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	if s.history == nil {
		if sess, err := s.registry.Get(sessionID); err == nil {
			return sess.Memory.Turns(), nil
		}
		return []models.Turn{}, nil
	}

	turns, err := s.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}

// Retrieve returns the passages the session would use as context for query.
func (s *Service) Retrieve(ctx context.Context, sessionID, query string) ([]string, error) {
	sess, err := s.lookup(sessionID, query)
	if err != nil {
		return nil, err
	}
	return sess.Retriever.Retrieve(ctx, query)
}
