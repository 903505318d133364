// Package rolestore administra un storage.Store por rol de proceso.
//
// El lado broker y el lado cliente nunca comparten namespace: un ganador
// escrito por uno es invisible para el otro. Dentro de un mismo rol todos los
// llamadores reciben el mismo Store.
package rolestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/infra/storefactory"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

var (
	ErrResolverNotConfigured = errors.New("role store resolver not configured")
	ErrSharedNamespace       = errors.New("roles must not share a storage namespace")
)

// Resolver devuelve la configuración de storage para un rol.
type Resolver func(ctx context.Context, role broker.Role) (storage.Config, error)

// Config permite personalizar la instancia del Manager.
type Config struct {
	Resolve Resolver
	Factory *storefactory.Factory
}

// Manager administra Stores por rol.
type Manager struct {
	resolver Resolver
	factory  *storefactory.Factory
	ownsFac  bool

	mu         sync.RWMutex
	stores     map[broker.Role]storage.Store
	namespaces map[string]broker.Role
	sf         singleflight.Group
}

// New crea un nuevo Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Resolve == nil {
		return nil, ErrResolverNotConfigured
	}
	m := &Manager{
		resolver:   cfg.Resolve,
		factory:    cfg.Factory,
		stores:     make(map[broker.Role]storage.Store),
		namespaces: make(map[string]broker.Role),
	}
	if m.factory == nil {
		m.factory = storefactory.New()
		m.ownsFac = true
	}
	return m, nil
}

// Get devuelve (o crea) el Store asociado al rol.
func (m *Manager) Get(ctx context.Context, role broker.Role) (storage.Store, error) {
	m.mu.RLock()
	if s, ok := m.stores[role]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.sf.Do(string(role), func() (interface{}, error) {
		m.mu.RLock()
		s, ok := m.stores[role]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}
		return m.create(ctx, role)
	})
	if err != nil {
		return nil, err
	}
	return result.(storage.Store), nil
}

func (m *Manager) create(ctx context.Context, role broker.Role) (storage.Store, error) {
	cfg, err := m.resolver(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolve store for role %s: %w", role, err)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = role.Namespace()
	}
	if cfg.Driver, err = storage.ParseDriver(string(cfg.Driver)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if other, taken := m.namespaces[namespaceKey(cfg)]; taken && other != role {
		return nil, fmt.Errorf("%w: %s and %s both use %q", ErrSharedNamespace, other, role, cfg.Namespace)
	}

	s, err := m.factory.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store for role %s: %w", role, err)
	}
	m.stores[role] = s
	m.namespaces[namespaceKey(cfg)] = role
	return s, nil
}

// namespaceKey identifica backend + namespace. Dos roles sobre backends
// distintos pueden repetir namespace sin verse.
func namespaceKey(cfg storage.Config) string {
	loc := ""
	switch cfg.Driver {
	case storage.DriverRedis:
		loc = fmt.Sprintf("%s/%d", cfg.Redis.Addr, cfg.Redis.DB)
	case storage.DriverBolt:
		loc = cfg.Bolt.Path
	case storage.DriverFS:
		loc = cfg.FS.Dir
	}
	return string(cfg.Driver) + "|" + loc + "|" + cfg.Namespace
}

// Close cierra todos los Stores activos.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for role, s := range m.stores {
		err = multierr.Append(err, s.Close())
		delete(m.stores, role)
	}
	m.namespaces = make(map[string]broker.Role)
	if m.ownsFac {
		err = multierr.Append(err, m.factory.Close())
	}
	return err
}
