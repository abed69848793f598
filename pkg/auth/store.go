// Package auth implements the credential store: an opaque bearer token
// persisted in a file shared with the login flow. The token gates every REST
// call and hub handshake; its absence is a precondition failure, not a
// retryable error.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoCredential is returned when no bearer token is present. Callers
// surface this as "unauthenticated" and must not retry automatically.
var ErrNoCredential = errors.New("no credential present")

// Store holds the bearer token. The on-disk file is the source of truth so
// external processes (the login flow) can set or clear it; Store keeps an
// in-memory copy refreshed by Set/Clear and by the file watcher.
type Store struct {
	mu    sync.RWMutex
	path  string
	token string
}

// NewStore creates a store backed by the token file at path. An existing
// token on disk is loaded eagerly; a missing file just means logged out.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the current bearer token, or ErrNoCredential when absent.
func (s *Store) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// HasCredential reports whether a token is currently present.
func (s *Store) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Set persists token to the credential file and updates the in-memory copy.
func (s *Store) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("refusing to store empty token")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear removes the credential file and the in-memory token.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}

// reload reads the token file into memory. A missing file clears the token.
func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading credential file: %w", err)
	}
	s.mu.Lock()
	s.token = strings.TrimSpace(string(data))
	s.mu.Unlock()
	return nil
}
