// Package accounts modela el registro de cuentas del sistema operativo: la
// lista de tipos de cuenta registrados (con la app dueña de cada uno) y la
// operación addAccount que el canal de backup usa como transporte.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
)

// ErrNoAuthenticator indica que ningún autenticador atiende el tipo pedido.
var ErrNoAuthenticator = errors.New("no authenticator registered for account type")

// Authenticator es una entrada del registro. Los valores llegan tal cual los
// reporta el sistema (pueden traer espacios o mayúsculas).
type Authenticator struct {
	Type               string `yaml:"type" json:"type"`
	OwnerApplicationID string `yaml:"owner" json:"owner"`
}

// Registry es el registro de cuentas del sistema.
type Registry interface {
	Authenticators(ctx context.Context) ([]Authenticator, error)
	AddAccount(ctx context.Context, accountType string, req broker.Payload) (broker.Payload, error)
}

// Static es un Registry en memoria. Es seguro para uso concurrente.
type Static struct {
	mu      sync.RWMutex
	entries []Authenticator
	replies map[string]broker.Payload

	// EnumerateErr, si no es nil, lo devuelve Authenticators.
	EnumerateErr error
}

// NewStatic crea un Static con las entradas dadas.
func NewStatic(entries ...Authenticator) *Static {
	return &Static{entries: append([]Authenticator(nil), entries...), replies: map[string]broker.Payload{}}
}

// Register agrega una entrada.
func (s *Static) Register(a Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, a)
}

// Respond fija lo que AddAccount devuelve para accountType.
func (s *Static) Respond(accountType string, reply broker.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[normType(accountType)] = reply
}

func (s *Static) Authenticators(_ context.Context) ([]Authenticator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EnumerateErr != nil {
		return nil, s.EnumerateErr
	}
	return append([]Authenticator(nil), s.entries...), nil
}

func (s *Static) AddAccount(ctx context.Context, accountType string, _ broker.Payload) (broker.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	reply, ok := s.replies[normType(accountType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAuthenticator, accountType)
	}
	out := make(broker.Payload, len(reply))
	for k, v := range reply {
		out[k] = v
	}
	return out, nil
}

// MatchesType compara tipos de cuenta con trim + case-fold.
func MatchesType(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normType(t string) string { return strings.ToLower(strings.TrimSpace(t)) }
