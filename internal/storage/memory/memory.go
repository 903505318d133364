// Package memory implementa storage.Store sobre go-cache. Útil para
// desarrollo y testing; "durable" solo mientras viva el proceso.
package memory

import (
	"context"
	"sync/atomic"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	gocache "github.com/patrickmn/go-cache"
)

// Backend es el mapa compartido. Varios Stores (uno por namespace) pueden
// apoyarse en el mismo Backend.
type Backend struct{ c *gocache.Cache }

// NewBackend crea un backend sin expiración ni janitor.
func NewBackend() *Backend {
	return &Backend{c: gocache.New(gocache.NoExpiration, 0)}
}

// Store implementa storage.Store.
type Store struct {
	b         *Backend
	namespace string
	closed    atomic.Bool
}

// New crea un Store con backend propio.
func New(namespace string) *Store {
	return NewOn(NewBackend(), namespace)
}

// NewOn crea un Store sobre un backend compartido.
func NewOn(b *Backend, namespace string) *Store {
	return &Store{b: b, namespace: namespace}
}

func (s *Store) key(k string) string { return storage.PrefixedKey(s.namespace, k) }

func (s *Store) Get(_ context.Context, key string) (string, error) {
	if s.closed.Load() {
		return "", storage.ErrClosed
	}
	v, ok := s.b.c.Get(s.key(key))
	if !ok {
		return "", storage.ErrNotFound
	}
	str, _ := v.(string)
	return str, nil
}

func (s *Store) Put(_ context.Context, key, value string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	s.b.c.Set(s.key(key), value, gocache.NoExpiration)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	s.b.c.Delete(s.key(key))
	return nil
}

func (s *Store) Namespace() string { return s.namespace }

// Close marca el Store como cerrado; el backend compartido no se toca.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
