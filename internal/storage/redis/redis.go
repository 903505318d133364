// Package redis implementa storage.Store sobre Redis. Todas las keys llevan
// el prefijo "<namespace>:".
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	rdb "github.com/redis/go-redis/v9"
)

// Store implementa storage.Store usando Redis.
type Store struct {
	client    *rdb.Client
	namespace string
	owned     bool
}

// Open crea un cliente Redis y verifica la conexión.
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	addr := cfg.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := rdb.NewClient(&rdb.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Verificar conexión
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}

	return &Store{client: client, namespace: cfg.Namespace, owned: true}, nil
}

// NewWithClient reutiliza un cliente existente; Close no lo cierra.
func NewWithClient(client *rdb.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(k string) string { return storage.PrefixedKey(s.namespace, k) }

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, rdb.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("storage: redis del %s: %w", key, err)
	}
	return nil
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
