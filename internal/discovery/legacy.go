package discovery

import (
	"context"

	"github.com/dropDatabas3/brokerdisco/internal/accounts"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"go.uber.org/zap"
)

// LegacyResolver elige el broker activo mirando qué app registró el tipo de
// cuenta legacy en el registro de cuentas del sistema.
//
// Es un fallback best-effort: cualquier falla (registro ilegible, app
// desconocida, firma que no coincide) termina en nil.
type LegacyResolver struct {
	registry    accounts.Registry
	candidates  *broker.CandidateSet
	validator   SignatureValidator
	accountType string
	log         *zap.Logger
}

// NewLegacyResolver crea el resolver. accountType vacío usa broker.LegacyAccountType.
func NewLegacyResolver(registry accounts.Registry, candidates *broker.CandidateSet, validator SignatureValidator, accountType string, log *zap.Logger) *LegacyResolver {
	if accountType == "" {
		accountType = broker.LegacyAccountType
	}
	return &LegacyResolver{
		registry:    registry,
		candidates:  candidates,
		validator:   validator,
		accountType: accountType,
		log:         logger.OrNamed(log, "discovery.legacy"),
	}
}

func (r *LegacyResolver) Resolve(ctx context.Context) *broker.Identity {
	log := logger.From(ctx, r.log)

	auths, err := r.registry.Authenticators(ctx)
	if err != nil {
		log.Warn("cannot enumerate account registry", logger.Err(err))
		return nil
	}

	for _, a := range auths {
		if !accounts.MatchesType(a.Type, r.accountType) {
			continue
		}
		owner := broker.NormalizeAppID(a.OwnerApplicationID)
		known := r.candidates.Lookup(owner)
		if len(known) == 0 {
			log.Info("legacy account type owned by unknown app", logger.Candidate(owner))
			continue
		}
		for _, c := range known {
			if r.validator.IsSignedByKnownKey(ctx, c.Identity) {
				id := c.Identity
				log.Info("legacy resolver found broker", logger.BrokerApp(id.ApplicationID))
				return &id
			}
		}
		log.Warn("legacy account type owner failed signature check", logger.Candidate(owner))
	}
	return nil
}
