package activebroker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"go.uber.org/zap"
)

// KeyForceLegacyUntil guarda el deadline (unix ms) de la ventana force-legacy.
const KeyForceLegacyUntil = "force_legacy_until"

// ClientCache es la variante del lado SDK: agrega la ventana force-legacy,
// un circuit breaker con vencimiento que manda el descubrimiento directo al
// resolver legacy hasta que pasa el deadline.
type ClientCache struct {
	*Cache
	clock clock.Clock
}

// NewClientCache crea un ClientCache. clk puede ser nil (reloj real).
func NewClientCache(store storage.Store, clk clock.Clock, log *zap.Logger) *ClientCache {
	if clk == nil {
		clk = clock.New()
	}
	return &ClientCache{Cache: New(store, log), clock: clk}
}

// SetForceLegacyFor abre la ventana por d a partir de ahora.
func (c *ClientCache) SetForceLegacyFor(ctx context.Context, d time.Duration) error {
	deadline := c.clock.Now().Add(d).UnixMilli()
	if err := c.store.Put(ctx, KeyForceLegacyUntil, strconv.FormatInt(deadline, 10)); err != nil {
		return fmt.Errorf("write %s: %w", KeyForceLegacyUntil, err)
	}
	c.log.Info("force-legacy window opened", logger.Duration(d))
	return nil
}

// ShouldUseLegacy es true mientras now < deadline guardado.
// Un valor ilegible se trata como ventana cerrada.
func (c *ClientCache) ShouldUseLegacy(ctx context.Context) (bool, error) {
	v, err := c.store.Get(ctx, KeyForceLegacyUntil)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", KeyForceLegacyUntil, err)
	}
	deadline, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		c.log.Warn("ignoring malformed force-legacy deadline", logger.Err(perr))
		return false, nil
	}
	return c.clock.Now().UnixMilli() < deadline, nil
}

// ForceLegacyUntil devuelve el deadline guardado (zero si no hay).
func (c *ClientCache) ForceLegacyUntil(ctx context.Context) (time.Time, error) {
	v, err := c.store.Get(ctx, KeyForceLegacyUntil)
	if storage.IsNotFound(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", KeyForceLegacyUntil, err)
	}
	ms, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

// ClearForceLegacy cierra la ventana.
func (c *ClientCache) ClearForceLegacy(ctx context.Context) error {
	if err := c.store.Remove(ctx, KeyForceLegacyUntil); err != nil {
		return fmt.Errorf("remove %s: %w", KeyForceLegacyUntil, err)
	}
	return nil
}
