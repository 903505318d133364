package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger en el contexto.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extrae el logger del contexto; si no hay, fallback a def (o al singleton si def es nil).
func From(ctx context.Context, def ...*zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	if len(def) > 0 && def[0] != nil {
		return def[0]
	}
	return L()
}

// Scoped deriva un logger con campos extra y lo guarda en un nuevo contexto.
func Scoped(ctx context.Context, base *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := From(ctx, base).With(fields...)
	return ToContext(ctx, l), l
}
