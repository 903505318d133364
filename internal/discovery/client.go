// Package discovery decide cuál de las apps broker instaladas es la activa.
//
// El algoritmo completo (lectura de cache, consulta a candidatas, fallback
// legacy, escritura de cache) corre bajo el lock del Cache, así que varios
// llamadores concurrentes colapsan en una sola consulta real.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/metrics"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/dropDatabas3/brokerdisco/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultForceLegacyWindow es cuánto se saltea la consulta directa después
// de que todas las candidatas respondieron que solo soportan legacy.
const DefaultForceLegacyWindow = 60 * time.Minute

var (
	ErrMissingCandidates = errors.New("discovery: candidates are required")
	ErrMissingTransport  = errors.New("discovery: transport is required")
	ErrMissingCache      = errors.New("discovery: cache is required")
	ErrMissingInstalled  = errors.New("discovery: installed checker is required")
	ErrMissingValidator  = errors.New("discovery: signature validator is required")
	ErrMissingLegacy     = errors.New("discovery: legacy resolver is required")
)

// Options agrupa las dependencias del Client.
type Options struct {
	Candidates *broker.CandidateSet
	Transport  transport.Transport
	Cache      Cache
	Installed  InstalledChecker
	Validator  SignatureValidator
	Legacy     Resolver

	// ForceLegacyWindow <= 0 usa DefaultForceLegacyWindow. Solo aplica si
	// Cache implementa ForceLegacyCache.
	ForceLegacyWindow time.Duration

	Logger *zap.Logger
}

// Client es el orquestador. No guarda estado propio: todo vive en el Cache.
type Client struct {
	candidates  *broker.CandidateSet
	transport   transport.Transport
	cache       Cache
	forceLegacy ForceLegacyCache
	installed   InstalledChecker
	validator   SignatureValidator
	legacy      Resolver
	window      time.Duration
	log         *zap.Logger
}

// New valida opts y arma el Client.
func New(opts Options) (*Client, error) {
	switch {
	case opts.Candidates == nil:
		return nil, ErrMissingCandidates
	case opts.Transport == nil:
		return nil, ErrMissingTransport
	case opts.Cache == nil:
		return nil, ErrMissingCache
	case opts.Installed == nil:
		return nil, ErrMissingInstalled
	case opts.Validator == nil:
		return nil, ErrMissingValidator
	case opts.Legacy == nil:
		return nil, ErrMissingLegacy
	}
	c := &Client{
		candidates: opts.Candidates,
		transport:  opts.Transport,
		cache:      opts.Cache,
		installed:  opts.Installed,
		validator:  opts.Validator,
		legacy:     opts.Legacy,
		window:     opts.ForceLegacyWindow,
		log:        logger.OrNamed(opts.Logger, "discovery"),
	}
	if c.window <= 0 {
		c.window = DefaultForceLegacyWindow
	}
	if fl, ok := opts.Cache.(ForceLegacyCache); ok {
		c.forceLegacy = fl
	}
	return c, nil
}

// ActiveBroker devuelve el broker activo, o nil si no hay ninguno.
// El error queda reservado para fallas del storage del cache.
//
// Cancelar ctx no interrumpe un descubrimiento en curso: otros llamadores
// pueden estar esperando el mismo resultado.
func (c *Client) ActiveBroker(ctx context.Context, skipCache bool) (*broker.Identity, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, log := logger.Scoped(ctx, c.log, logger.RequestID(uuid.NewString()))

	start := time.Now()
	seen := c.cache.Discoveries()
	lock := c.cache.Lock()
	lock.Lock()
	defer lock.Unlock()
	metrics.ObserveLockWait(time.Since(start))

	var (
		id     *broker.Identity
		source string
		err    error
	)
	if skipCache && c.cache.Discoveries() != seen {
		// otro llamador terminó un descubrimiento mientras esperábamos
		log.Debug("reusing discovery finished while waiting for the lock")
		id, err = c.cache.Get(ctx)
		source = metrics.SourceCache
	} else {
		id, source, err = c.discover(ctx, log, skipCache)
	}
	metrics.ObserveDiscovery(source, time.Since(start))
	if err != nil {
		log.Error("broker discovery failed", logger.Source(source), logger.Err(err))
		return nil, err
	}
	if id == nil {
		log.Info("no active broker", logger.Source(source))
		return nil, nil
	}
	log.Info("active broker resolved", logger.Source(source), logger.BrokerApp(id.ApplicationID), logger.Fingerprint(id.SigningFingerprint), logger.Duration(time.Since(start)))
	return id, nil
}

func (c *Client) discover(ctx context.Context, log *zap.Logger, skipCache bool) (*broker.Identity, string, error) {
	if !skipCache {
		if c.forceLegacy != nil {
			use, err := c.forceLegacy.ShouldUseLegacy(ctx)
			if err != nil {
				return nil, metrics.SourceNone, err
			}
			if use {
				log.Debug("force-legacy window is open, skipping direct query")
				if id := c.legacy.Resolve(ctx); id != nil {
					return id, metrics.SourceForcedLegacy, nil
				}
				return nil, metrics.SourceNone, nil
			}
		}

		cached, err := c.cache.Get(ctx)
		if err != nil {
			return nil, metrics.SourceCache, err
		}
		if cached != nil {
			ok, reason := c.stillValid(ctx, *cached)
			if ok {
				return cached, metrics.SourceCache, nil
			}
			log.Info("clearing cached broker", logger.BrokerApp(cached.ApplicationID), zap.String("reason", reason))
			if err := c.cache.Clear(ctx); err != nil {
				return nil, metrics.SourceCache, err
			}
		}
	}

	winner, allLegacyOnly := c.query(ctx, log)
	source := metrics.SourceQuery
	if winner == nil {
		if allLegacyOnly && c.forceLegacy != nil {
			if err := c.forceLegacy.SetForceLegacyFor(ctx, c.window); err != nil {
				log.Warn("could not open force-legacy window", logger.Err(err))
			} else {
				log.Info("every candidate only supports legacy election, skipping direct query for a while",
					logger.Duration(c.window))
			}
		}
		winner = c.legacy.Resolve(ctx)
		source = metrics.SourceLegacy
	}

	if winner == nil {
		if err := c.cache.Clear(ctx); err != nil {
			return nil, metrics.SourceNone, err
		}
		c.cache.RecordDiscovery()
		return nil, metrics.SourceNone, nil
	}
	if err := c.cache.Set(ctx, *winner); err != nil {
		return nil, source, err
	}
	c.cache.RecordDiscovery()
	return winner, source, nil
}

// stillValid revisa un ganador cacheado sin tocar ningún Transport.
func (c *Client) stillValid(ctx context.Context, id broker.Identity) (bool, string) {
	if !c.installed.IsInstalledAndEnabled(ctx, id) {
		return false, "app is no longer installed"
	}
	if !c.validator.IsSignedByKnownKey(ctx, id) {
		return false, "installed app does not match a known signature"
	}
	return true, ""
}

// query consulta las candidatas instaladas en el orden configurado y
// devuelve el primer ganador válido. allLegacyOnly es true si hubo al menos
// un intento y todos respondieron LegacyOnly.
func (c *Client) query(ctx context.Context, log *zap.Logger) (winner *broker.Identity, allLegacyOnly bool) {
	attempted, legacyOnly := 0, 0
	kind := c.transport.Kind().String()

	for _, cand := range c.candidates.All() {
		id := cand.Identity
		clog := log.With(logger.Candidate(id.String()), logger.TransportKind(kind))

		if !c.installed.IsInstalledAndEnabled(ctx, id) {
			continue
		}
		if !c.validator.IsSignedByKnownKey(ctx, id) {
			clog.Debug("installed candidate is not signed by its known key")
			continue
		}
		if !c.transport.Supports(ctx, id.ApplicationID) {
			clog.Debug("transport does not support candidate")
			continue
		}

		attempted++
		payload, err := c.transport.Send(ctx, broker.NewDiscoveryOperation(id.ApplicationID))
		if err == nil {
			winner, err = c.parse(ctx, id.ApplicationID, payload)
		}
		switch {
		case err == nil:
			return winner, false
		case broker.IsLegacyOnly(err):
			legacyOnly++
			clog.Info("candidate only supports legacy election")
		case broker.IsUnsupported(err):
			clog.Info("candidate does not support broker discovery")
		default:
			clog.Warn("broker discovery against candidate failed", logger.Err(err))
		}
	}
	return nil, attempted > 0 && legacyOnly == attempted
}

// parse convierte la respuesta en un ganador validado.
func (c *Client) parse(ctx context.Context, target string, p broker.Payload) (*broker.Identity, error) {
	kind := c.transport.Kind()
	if err := broker.ErrorFromPayload(p, kind, target); err != nil {
		return nil, err
	}

	appID := p.Get(broker.KeyActiveBrokerAppID)
	fp := p.Get(broker.KeyActiveBrokerFingerprint)
	if appID == "" || fp == "" {
		return nil, broker.NewError(broker.KindConnectionErr, kind, target, "discovery response is missing required fields", nil)
	}

	var winner *broker.Identity
	for _, cand := range c.candidates.Lookup(appID) {
		if cand.SigningFingerprint == fp {
			id := cand.Identity
			winner = &id
			break
		}
	}
	switch {
	case winner == nil:
		return nil, broker.NewError(broker.KindValidationErr, kind, target, "reported broker "+appID+" is not a known candidate", nil)
	case !c.installed.IsInstalledAndEnabled(ctx, *winner):
		return nil, broker.NewError(broker.KindValidationErr, kind, target, "reported broker "+appID+" is not installed", nil)
	case !c.validator.IsSignedByKnownKey(ctx, *winner):
		return nil, broker.NewError(broker.KindValidationErr, kind, target, "reported broker "+appID+" is not signed by a known key", nil)
	}
	return winner, nil
}
