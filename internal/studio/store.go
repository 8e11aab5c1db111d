package studio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the persistence abstraction for the project document.
// Implementations can be in-memory, file-based, or remote.
type Store interface {
	// Load returns the saved document; ok is false when nothing was saved yet.
	Load() (doc []byte, ok bool, err error)
	Save(doc []byte) error
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu  sync.RWMutex
	doc []byte
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load() ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, false, nil
	}
	return append([]byte(nil), s.doc...), true, nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(doc []byte) error {
	s.mu.Lock()
	s.doc = append([]byte(nil), doc...)
	s.mu.Unlock()
	return nil
}

// FileStore keeps the project document in a single file. Saves replace the
// file atomically.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.Load.
func (s *FileStore) Load() ([]byte, bool, error) {
	doc, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load project: %w", err)
	}
	return doc, true, nil
}

// Save implements Store.Save.
func (s *FileStore) Save(doc []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".project-*.yaml")
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("save project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}
