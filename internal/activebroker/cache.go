// Package activebroker guarda el último broker activo conocido.
//
// Dos capas por instancia: un campo en memoria (autoritativo una vez
// poblado) y un storage.Store durable (fuente de verdad entre reinicios).
// Cada Cache lleva además el lock de descubrimiento que comparten todos los
// orquestadores construidos sobre ella.
package activebroker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"go.uber.org/zap"
)

// Keys fijas en el storage durable.
const (
	KeyApplicationID      = "active_broker_application_id"
	KeySigningFingerprint = "active_broker_signing_fingerprint"
)

// Cache implementa el cache de dos capas.
type Cache struct {
	store storage.Store
	log   *zap.Logger

	// discovery serializa el algoritmo completo de descubrimiento.
	discovery sync.Mutex
	// discoveries cuenta los descubrimientos completos hechos bajo el lock.
	discoveries atomic.Uint64

	mu     sync.RWMutex
	cached *broker.Identity
}

// New crea un Cache sobre store. log puede ser nil.
func New(store storage.Store, log *zap.Logger) *Cache {
	return &Cache{
		store: store,
		log:   logger.OrNamed(log, "activebroker").With(logger.Key(store.Namespace())),
	}
}

// Lock devuelve el lock de descubrimiento asociado a esta instancia.
func (c *Cache) Lock() sync.Locker { return &c.discovery }

// Discoveries devuelve cuántos descubrimientos completos terminaron sobre
// esta instancia. Un llamador lo lee antes de tomar el lock: si cambió al
// obtenerlo, el ganador cacheado ya es fresco.
func (c *Cache) Discoveries() uint64 { return c.discoveries.Load() }

// RecordDiscovery marca un descubrimiento completo. Llamar con el lock tomado.
func (c *Cache) RecordDiscovery() { c.discoveries.Add(1) }

// Namespace del storage subyacente.
func (c *Cache) Namespace() string { return c.store.Namespace() }

// Get devuelve el ganador cacheado o nil.
// Un fallo de lectura del storage (distinto de "no existe") se propaga.
func (c *Cache) Get(ctx context.Context) (*broker.Identity, error) {
	c.mu.RLock()
	if c.cached != nil {
		id := *c.cached
		c.mu.RUnlock()
		return &id, nil
	}
	c.mu.RUnlock()

	appID, err := c.read(ctx, KeyApplicationID)
	if err != nil {
		return nil, err
	}
	fp, err := c.read(ctx, KeySigningFingerprint)
	if err != nil {
		return nil, err
	}
	if appID == "" || fp == "" {
		// no se puebla el campo: una escritura posterior no debe heredar nada
		return nil, nil
	}

	id := broker.NewIdentity(appID, fp)
	c.mu.Lock()
	c.cached = &id
	c.mu.Unlock()

	out := id
	return &out, nil
}

func (c *Cache) read(ctx context.Context, key string) (string, error) {
	v, err := c.store.Get(ctx, key)
	if storage.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return strings.TrimSpace(v), nil
}

// Set escribe en el storage durable y solo después actualiza el campo en memoria.
func (c *Cache) Set(ctx context.Context, id broker.Identity) error {
	if id.IsZero() {
		return fmt.Errorf("activebroker: refusing to cache incomplete identity %q", id.String())
	}
	if err := c.store.Put(ctx, KeyApplicationID, id.ApplicationID); err != nil {
		return fmt.Errorf("write %s: %w", KeyApplicationID, err)
	}
	if err := c.store.Put(ctx, KeySigningFingerprint, id.SigningFingerprint); err != nil {
		return fmt.Errorf("write %s: %w", KeySigningFingerprint, err)
	}

	stored := broker.NewIdentity(id.ApplicationID, id.SigningFingerprint)
	c.mu.Lock()
	c.cached = &stored
	c.mu.Unlock()

	c.log.Debug("active broker cached", logger.BrokerApp(id.ApplicationID), logger.Fingerprint(id.SigningFingerprint))
	return nil
}

// Clear elimina ambas keys del storage y luego el campo en memoria.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Remove(ctx, KeyApplicationID); err != nil {
		return fmt.Errorf("remove %s: %w", KeyApplicationID, err)
	}
	if err := c.store.Remove(ctx, KeySigningFingerprint); err != nil {
		return fmt.Errorf("remove %s: %w", KeySigningFingerprint, err)
	}

	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()

	c.log.Debug("active broker cache cleared")
	return nil
}
