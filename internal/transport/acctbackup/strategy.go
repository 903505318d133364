// Package acctbackup implementa el canal de backup que viaja sobre el
// registro de cuentas del sistema: cada broker registra un tipo de cuenta
// propio y la operación se entrega como un addAccount sobre ese tipo.
//
// No es un canal oficial; solo se usa como backup de otro Transport.
package acctbackup

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/accounts"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"go.uber.org/zap"
)

// Tipos de cuenta de backup por app.
const (
	LinkToWindowsAccountType = "com.microsoft.ltwpassthroughbackup"
	CompanyPortalAccountType = "com.microsoft.cppassthroughbackup"
	AuthenticatorAccountType = "com.microsoft.authapppassthroughbackup"
)

// DefaultTimeout acota cada intento.
const DefaultTimeout = 5 * time.Second

// Claves del payload que recibe el autenticador del lado broker.
// Cambiarlas rompe a brokers viejos.
const (
	KeyOperationPath = "content_provider_path"
	keyRequestPrefix = "request."
)

// AppValidator confirma que una app instalada es un broker genuino.
type AppValidator interface {
	IsValidApplication(ctx context.Context, appID string) bool
}

// DefaultAccountTypes devuelve el tipo de cuenta de cada app conocida.
// Incluye los ids mock: solo se consultan con trust_debug_brokers.
// Entra en pánico si alguna candidata de producción de known no tiene tipo:
// agregar un broker nuevo sin su tipo de backup es un error de programación.
func DefaultAccountTypes(known *broker.CandidateSet) map[string]string {
	m := map[string]string{
		broker.LinkToWindowsAppID:  LinkToWindowsAccountType,
		broker.MockLinkToWindowsID: LinkToWindowsAccountType,
		broker.CompanyPortalAppID:  CompanyPortalAccountType,
		broker.MockCompanyPortalID: CompanyPortalAccountType,
		broker.AuthenticatorAppID:  AuthenticatorAccountType,
		broker.MockAuthenticatorID: AuthenticatorAccountType,
	}
	MustCoverProduction(known, m)
	return m
}

// MustCoverProduction entra en pánico si alguna candidata de producción no
// tiene tipo de cuenta en types.
func MustCoverProduction(known *broker.CandidateSet, types map[string]string) {
	if missing := Uncovered(known, types); len(missing) > 0 {
		panic(fmt.Sprintf("acctbackup: production broker %s has no backup account type", missing[0]))
	}
}

// Uncovered devuelve, en orden, las candidatas de producción de known sin
// tipo de cuenta en types.
func Uncovered(known *broker.CandidateSet, types map[string]string) []string {
	norm := make(map[string]struct{}, len(types))
	for app := range types {
		norm[broker.NormalizeAppID(app)] = struct{}{}
	}
	var missing []string
	for _, c := range known.Production() {
		if _, ok := norm[broker.NormalizeAppID(c.ApplicationID)]; !ok {
			missing = append(missing, c.ApplicationID)
		}
	}
	return missing
}

// Strategy implementa transport.Transport sobre un accounts.Registry.
type Strategy struct {
	accountTypes map[string]string
	registry     accounts.Registry
	validator    AppValidator
	timeout      time.Duration
	log          *zap.Logger
}

// Option configura una Strategy.
type Option func(*Strategy)

// WithTimeout cambia el timeout por intento.
func WithTimeout(d time.Duration) Option {
	return func(s *Strategy) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger inyecta el logger.
func WithLogger(l *zap.Logger) Option { return func(s *Strategy) { s.log = l } }

// New crea una Strategy. accountTypes mapea application id -> tipo de cuenta.
func New(accountTypes map[string]string, registry accounts.Registry, validator AppValidator, opts ...Option) *Strategy {
	s := &Strategy{
		accountTypes: make(map[string]string, len(accountTypes)),
		registry:     registry,
		validator:    validator,
		timeout:      DefaultTimeout,
	}
	for app, typ := range accountTypes {
		s.accountTypes[broker.NormalizeAppID(app)] = typ
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNamed(s.log, "transport.acctbackup")
	return s
}

func (s *Strategy) Kind() broker.TransportKind { return broker.KindAccountRegistryBackup }

// Supports es true si target tiene tipo de cuenta y pasa la validación.
func (s *Strategy) Supports(ctx context.Context, target string) bool {
	typ, ok := s.accountTypes[broker.NormalizeAppID(target)]
	if !ok {
		s.log.Debug("target is not a known broker", logger.Candidate(target))
		return false
	}
	if err := s.validateTarget(ctx, target, typ); err != nil {
		s.log.Info("target does not support account registry backup", logger.Candidate(target), logger.Err(err))
		return false
	}
	return true
}

func (s *Strategy) Send(ctx context.Context, op broker.Operation) (broker.Payload, error) {
	typ, ok := s.accountTypes[broker.NormalizeAppID(op.Target)]
	if !ok {
		return nil, s.fail(broker.KindUnsupportedErr, op.Target, "target is not recognized as a broker", nil)
	}
	if err := s.validateTarget(ctx, op.Target, typ); err != nil {
		return nil, err
	}

	req := broker.Payload{KeyOperationPath: "/" + string(op.Kind)}
	for k, v := range op.Payload {
		req[keyRequestPrefix+k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		p   broker.Payload
		err error
	}
	// el registro puede ignorar ctx: el timeout se garantiza acá
	ch := make(chan result, 1)
	go func() {
		p, err := s.registry.AddAccount(ctx, typ, req)
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.log.Error("account registry failed to respond", logger.Candidate(op.Target), logger.Err(r.err))
			return nil, s.fail(broker.KindConnectionErr, op.Target, "account registry failed to respond", r.err)
		}
		if r.p == nil {
			return nil, s.fail(broker.KindConnectionErr, op.Target, "account registry returned no result", nil)
		}
		return r.p, nil
	case <-ctx.Done():
		return nil, s.fail(broker.KindConnectionErr, op.Target, "account registry timed out", ctx.Err())
	}
}

// validateTarget verifica que el tipo de cuenta esté registrado por target y
// que target sea un broker genuino.
func (s *Strategy) validateTarget(ctx context.Context, target, accountType string) error {
	auths, err := s.registry.Authenticators(ctx)
	if err != nil {
		return s.fail(broker.KindValidationErr, target, "cannot enumerate authenticators", err)
	}
	owned := false
	for _, a := range auths {
		if broker.NormalizeAppID(a.OwnerApplicationID) == broker.NormalizeAppID(target) && accounts.MatchesType(a.Type, accountType) {
			owned = true
			break
		}
	}
	if !owned {
		return s.fail(broker.KindValidationErr, target, target+" does not own account type "+accountType, nil)
	}
	if !s.validator.IsValidApplication(ctx, target) {
		return s.fail(broker.KindValidationErr, target, target+" is not a valid broker app", nil)
	}
	return nil
}

func (s *Strategy) fail(kind broker.ErrorKind, target, msg string, err error) error {
	return broker.NewError(kind, broker.KindAccountRegistryBackup, target, msg, err)
}
