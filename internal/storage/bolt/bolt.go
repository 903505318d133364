// Package bolt implementa storage.Store sobre un archivo BoltDB local.
// Cada namespace es un bucket; un mismo archivo puede alojar varios roles.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
)

// DB envuelve un *bolt.DB abierto. Bolt toma un lock exclusivo sobre el
// archivo, así que un proceso debe abrirlo una sola vez y derivar Stores.
type DB struct {
	db *bolt.DB
}

// Open abre (o crea) el archivo en path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: bolt open %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Namespace devuelve un Store atado al bucket namespace (se crea si falta).
func (d *DB) Namespace(namespace string) (*Store, error) {
	if namespace == "" {
		return nil, storage.ErrEmptyNamespace
	}
	err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(namespace))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: bolt bucket %s: %w", namespace, err)
	}
	return &Store{db: d.db, bucket: []byte(namespace)}, nil
}

// Close cierra el archivo. Los Stores derivados dejan de funcionar.
func (d *DB) Close() error { return d.db.Close() }

// Store implementa storage.Store sobre un bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	var (
		val   string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			// v solo es válido dentro de la tx
			val = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: bolt get %s: %w", key, err)
	}
	if !found {
		return "", storage.ErrNotFound
	}
	return val, nil
}

func (s *Store) Put(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("storage: bolt put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("storage: bolt delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Namespace() string { return string(s.bucket) }

// Close no cierra el archivo: lo hace el dueño del *DB.
func (s *Store) Close() error { return nil }
