package transport

import (
	"context"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Chain es un Transport primario con backups ordenados.
//
// Los backups son best-effort: si todos fallan el llamador ve el error del
// primario, nunca el del último backup. Kind y Supports son siempre los del
// primario.
type Chain struct {
	primary Transport
	backups []Transport
	log     *zap.Logger
}

// WithBackup compone primary con backups (en orden de intento).
func WithBackup(primary Transport, backups ...Transport) *Chain {
	return NewChain(nil, primary, backups...)
}

// NewChain es WithBackup con logger explícito. log puede ser nil.
func NewChain(log *zap.Logger, primary Transport, backups ...Transport) *Chain {
	return &Chain{
		primary: primary,
		backups: append([]Transport(nil), backups...),
		log:     logger.OrNamed(log, "transport.chain"),
	}
}

func (c *Chain) Kind() broker.TransportKind { return c.primary.Kind() }

func (c *Chain) Supports(ctx context.Context, target string) bool {
	return c.primary.Supports(ctx, target)
}

func (c *Chain) Send(ctx context.Context, op broker.Operation) (broker.Payload, error) {
	payload, primaryErr := c.primary.Send(ctx, op)
	if primaryErr == nil {
		return payload, nil
	}
	if len(c.backups) == 0 {
		return nil, primaryErr
	}

	log := c.log.With(logger.Candidate(op.Target), logger.TransportKind(c.primary.Kind().String()))
	log.Info("primary transport failed, trying backups", logger.Err(primaryErr))

	var backupErrs error
	for i, b := range c.backups {
		p, err := b.Send(ctx, op)
		if err == nil {
			log.Info("backup transport answered",
				zap.Int("backup_index", i),
				zap.String("backup_kind", b.Kind().String()))
			return p, nil
		}
		backupErrs = multierr.Append(backupErrs, err)
	}

	log.Warn("all backup transports failed", logger.Err(backupErrs))
	return nil, primaryErr
}
