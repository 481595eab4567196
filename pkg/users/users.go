package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type record struct {
	Password string   `json:"password"`
	Sessions []string `json:"sessions"`
}

// Store is a JSON file of accounts and the session ids each one owns.
// Passwords are stored as given.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	users := map[string]record{}
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users file: %w", err)
	}
	return users, nil
}

func (s *Store) save(users map[string]record) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create users directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}

// Exists reports whether username has an account.
func (s *Store) Exists(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := users[username]
	return ok, nil
}

// Create adds an account with no sessions.
func (s *Store) Create(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; ok {
		return ErrUserExists
	}
	users[username] = record{Password: password, Sessions: []string{}}
	return s.save(users)
}

// Verify returns ErrInvalidCredentials for unknown users and wrong passwords.
func (s *Store) Verify(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	rec, ok := users[username]
	if !ok || rec.Password != password {
		return ErrInvalidCredentials
	}
	return nil
}

// AddSession records sessionID under username. Adding a known id is a no-op.
func (s *Store) AddSession(username, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	rec, ok := users[username]
	if !ok {
		return ErrUserNotFound
	}
	if slices.Contains(rec.Sessions, sessionID) {
		return nil
	}
	rec.Sessions = append(rec.Sessions, sessionID)
	users[username] = rec
	return s.save(users)
}

// Sessions lists the session ids recorded for username in submission order.
func (s *Store) Sessions(username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if rec.Sessions == nil {
		return []string{}, nil
	}
	return rec.Sessions, nil
}
