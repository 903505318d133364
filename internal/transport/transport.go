// Package transport define el canal por el que se envía una operación a una
// app candidata y los combinadores que se arman encima (cadena con backups,
// cache del probe de soporte, instrumentación).
package transport

import (
	"context"
	"errors"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/metrics"
)

// Transport envía una operación a la app indicada en op.Target.
//
// Send falla con un *broker.Error: Unsupported si el target no implementa la
// operación, ConnectionFailure si el canal no respondió o respondió basura,
// ValidationFailure si el target no pasó una precondición estructural.
// Supports no debe tener efectos secundarios.
type Transport interface {
	Kind() broker.TransportKind
	Supports(ctx context.Context, target string) bool
	Send(ctx context.Context, op broker.Operation) (broker.Payload, error)
}

// Result clasifica el resultado de un Send para logs y métricas.
func Result(err error) string {
	var be *broker.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &be):
		return string(be.Kind)
	default:
		return "error"
	}
}

// Instrumented cuenta cada Send en broker_transport_send_total.
type Instrumented struct {
	Transport
}

// Instrument envuelve t con métricas.
func Instrument(t Transport) *Instrumented { return &Instrumented{Transport: t} }

func (i *Instrumented) Send(ctx context.Context, op broker.Operation) (broker.Payload, error) {
	p, err := i.Transport.Send(ctx, op)
	metrics.ObserveSend(i.Kind().String(), Result(err))
	return p, err
}
