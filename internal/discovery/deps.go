package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
)

// Colaboradores del orquestador. Se definen acá, del lado consumidor.

// InstalledChecker informa si la app de id está instalada y habilitada.
type InstalledChecker interface {
	IsInstalledAndEnabled(ctx context.Context, id broker.Identity) bool
}

// SignatureValidator confirma que la app instalada está firmada por una
// clave conocida que coincide con id.
type SignatureValidator interface {
	IsSignedByKnownKey(ctx context.Context, id broker.Identity) bool
}

// Cache es el cache del broker activo con su lock de descubrimiento.
type Cache interface {
	Lock() sync.Locker
	Get(ctx context.Context) (*broker.Identity, error)
	Set(ctx context.Context, id broker.Identity) error
	Clear(ctx context.Context) error

	// Discoveries y RecordDiscovery permiten que los llamadores que esperan
	// el lock reutilicen el resultado de quien lo tenía.
	Discoveries() uint64
	RecordDiscovery()
}

// ForceLegacyCache es la parte opcional del cache del lado cliente.
type ForceLegacyCache interface {
	ShouldUseLegacy(ctx context.Context) (bool, error)
	SetForceLegacyFor(ctx context.Context, d time.Duration) error
}

// Resolver elige un broker por el mecanismo legacy. Nunca falla: nil es
// "no hay broker".
type Resolver interface {
	Resolve(ctx context.Context) *broker.Identity
}
