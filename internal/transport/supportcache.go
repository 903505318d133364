package transport

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSupportCacheSize se usa cuando el tamaño configurado es <= 0.
const DefaultSupportCacheSize = 64

// Versions informa la versión instalada de una app. ok=false si no está instalada.
type Versions interface {
	Version(ctx context.Context, appID string) (string, bool)
}

type supportKey struct {
	target  string
	version string
}

// CachedSupport memoiza Supports por (target, versión instalada): el soporte
// de una operación no cambia sin reinstalar o actualizar la app.
// Send y Kind pasan directo al Transport envuelto.
type CachedSupport struct {
	Transport
	versions Versions
	cache    *lru.Cache[supportKey, bool]
}

// NewCachedSupport envuelve t.
func NewCachedSupport(t Transport, versions Versions, size int) (*CachedSupport, error) {
	if size <= 0 {
		size = DefaultSupportCacheSize
	}
	c, err := lru.New[supportKey, bool](size)
	if err != nil {
		return nil, fmt.Errorf("support cache: %w", err)
	}
	return &CachedSupport{Transport: t, versions: versions, cache: c}, nil
}

func (c *CachedSupport) Supports(ctx context.Context, target string) bool {
	version, ok := c.versions.Version(ctx, target)
	if !ok || version == "" {
		// sin versión no hay clave estable
		return c.Transport.Supports(ctx, target)
	}
	key := supportKey{target: target, version: version}
	if v, hit := c.cache.Get(key); hit {
		return v
	}
	v := c.Transport.Supports(ctx, target)
	c.cache.Add(key, v)
	return v
}

// Purge vacía el cache.
func (c *CachedSupport) Purge() { c.cache.Purge() }
