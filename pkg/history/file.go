package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateSessionID rejects ids that cannot be used as a file name.
func ValidateSessionID(id string) error {
	if !validSessionID.MatchString(id) || id == "." || id == ".." {
		return types.ValidationError{
			Field:   "session_id",
			Message: "session_id may only contain letters, digits, '.', '_' and '-'",
		}
	}
	return nil
}

// NormalizeSessionID trims surrounding whitespace from id and validates the
// result.
func NormalizeSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", types.ValidationError{Field: "session_id", Message: "session_id is required"}
	}
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}

// FileStore keeps one JSON file per session under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Load returns the recorded turns of a session, or none if it has no file.
func (s *FileStore) Load(_ context.Context, id string) ([]models.Turn, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return readTurns(path)
}

// Append adds a turn to the end of the session's file.
func (s *FileStore) Append(_ context.Context, id string, turn models.Turn) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns, err := readTurns(path)
	if err != nil {
		return err
	}
	turns = append(turns, turn)

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

func readTurns(path string) ([]models.Turn, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var turns []models.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode history %s: %w", filepath.Base(path), err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}
