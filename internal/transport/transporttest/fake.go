// Package transporttest provee un Transport programable para tests.
package transporttest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
)

// Reply es la respuesta programada para un target.
type Reply struct {
	Payload broker.Payload
	Err     error
}

// Fake es un Transport en memoria. Es seguro para uso concurrente.
type Fake struct {
	TransportKind broker.TransportKind

	// Unsupported lista targets para los que Supports devuelve false.
	Unsupported map[string]bool

	// Default se usa si el target no tiene Reply propia.
	Default Reply

	// OnSend, si no es nil, corre antes de responder (p.ej. para bloquear).
	OnSend func(op broker.Operation)

	mu       sync.Mutex
	replies  map[string]Reply
	sent     []broker.Operation
	sends    atomic.Int64
	supports atomic.Int64
}

// New crea un Fake del tipo indicado.
func New(kind broker.TransportKind) *Fake {
	return &Fake{TransportKind: kind, replies: map[string]Reply{}, Unsupported: map[string]bool{}}
}

// Reply programa la respuesta para target.
func (f *Fake) Reply(target string, r Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[target] = r
	return f
}

// Winner programa una respuesta de descubrimiento exitosa para target.
func (f *Fake) Winner(target string, id broker.Identity) *Fake {
	return f.Reply(target, Reply{Payload: broker.Payload{
		broker.KeyActiveBrokerAppID:       id.ApplicationID,
		broker.KeyActiveBrokerFingerprint: id.SigningFingerprint,
	}})
}

// Fail programa un error de tipo kind para target.
func (f *Fake) Fail(target string, kind broker.ErrorKind) *Fake {
	return f.Reply(target, Reply{Err: broker.NewError(kind, f.TransportKind, target, "programmed failure", nil)})
}

func (f *Fake) Kind() broker.TransportKind { return f.TransportKind }

func (f *Fake) Supports(_ context.Context, target string) bool {
	f.supports.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unsupported[target]
}

func (f *Fake) Send(_ context.Context, op broker.Operation) (broker.Payload, error) {
	f.sends.Add(1)
	if f.OnSend != nil {
		f.OnSend(op)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, op)
	r, ok := f.replies[op.Target]
	if !ok {
		r = f.Default
	}
	return r.Payload, r.Err
}

// Sends cuenta las llamadas a Send.
func (f *Fake) Sends() int { return int(f.sends.Load()) }

// SupportsCalls cuenta las llamadas a Supports.
func (f *Fake) SupportsCalls() int { return int(f.supports.Load()) }

// Targets devuelve los targets enviados, en orden.
func (f *Fake) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, op := range f.sent {
		out = append(out, op.Target)
	}
	return out
}
