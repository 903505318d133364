// Package fs implementa storage.Store como un archivo JSON por namespace.
// Cada Get relee el archivo, así dos Stores sobre el mismo directorio ven
// las escrituras del otro. Las escrituras son atómicas (tmp + rename).
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/dropDatabas3/brokerdisco/internal/util/atomicwrite"
)

// Store implementa storage.Store sobre <dir>/<namespace>.json.
type Store struct {
	path      string
	namespace string
	mu        sync.Mutex
}

// New crea el Store. El archivo se crea en la primera escritura.
func New(dir, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, storage.ErrEmptyNamespace
	}
	if dir == "" {
		return nil, fmt.Errorf("storage: fs dir is required")
	}
	return &Store{
		path:      filepath.Join(dir, namespace+".json"),
		namespace: namespace,
	}, nil
}

func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", s.path, err)
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", s.path, err)
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return atomicwrite.AtomicWriteFile(s.path, b, 0o600)
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) Close() error { return nil }
