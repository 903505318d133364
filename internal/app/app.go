// Package app arma el grafo de dependencias de un proceso a partir de la
// configuración.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/dropDatabas3/brokerdisco/internal/activebroker"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/config"
	"github.com/dropDatabas3/brokerdisco/internal/device"
	"github.com/dropDatabas3/brokerdisco/internal/discovery"
	"github.com/dropDatabas3/brokerdisco/internal/infra/rolestore"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/dropDatabas3/brokerdisco/internal/signature"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/dropDatabas3/brokerdisco/internal/transport"
	"github.com/dropDatabas3/brokerdisco/internal/transport/acctbackup"
	"github.com/dropDatabas3/brokerdisco/internal/transport/httpipc"
	"go.uber.org/zap"
)

// ErrUnreachableCandidate indica una candidata de producción sin ningún
// Transport que pueda alcanzarla.
var ErrUnreachableCandidate = errors.New("production candidate is not reachable through any transport")

// Container es el contenedor DI simple que usan los comandos.
type Container struct {
	Config     *config.Config
	Role       broker.Role
	Candidates *broker.CandidateSet

	Stores *rolestore.Manager
	Cache  *activebroker.Cache
	// ClientCache es nil en el rol broker.
	ClientCache *activebroker.ClientCache

	Device    *device.Snapshot
	Validator *signature.Validator
	Support   *transport.CachedSupport
	Transport transport.Transport
	Discovery *discovery.Client

	Logger *zap.Logger
}

// Options ajusta Build. Todos los campos son opcionales.
type Options struct {
	Clock  clock.Clock
	Device *device.Snapshot
	Logger *zap.Logger
}

// Build arma el Container del rol dado.
func Build(ctx context.Context, cfg *config.Config, role broker.Role, opts Options) (*Container, error) {
	log := logger.OrNamed(opts.Logger, "app").With(logger.Role(string(role)))

	c := &Container{
		Config:     cfg,
		Role:       role,
		Candidates: cfg.CandidateSet(),
		Logger:     log,
	}

	stores, err := rolestore.New(rolestore.Config{
		Resolve: func(_ context.Context, r broker.Role) (storage.Config, error) {
			return cfg.Store(r).StorageConfig(), nil
		},
	})
	if err != nil {
		return nil, err
	}
	c.Stores = stores

	store, err := stores.Get(ctx, role)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	if role == broker.RoleClient {
		c.ClientCache = activebroker.NewClientCache(store, opts.Clock, log)
		c.Cache = c.ClientCache.Cache
	} else {
		c.Cache = activebroker.New(store, log)
	}

	c.Device = opts.Device
	if c.Device == nil {
		if c.Device, err = loadDevice(cfg.Device.Path); err != nil {
			_ = stores.Close()
			return nil, err
		}
	}
	c.Validator = signature.New(c.Candidates, c.Device, log)

	if c.Transport, err = c.buildTransport(ctx, cfg, log); err != nil {
		_ = stores.Close()
		return nil, err
	}

	var cache discovery.Cache = c.Cache
	if c.ClientCache != nil {
		cache = c.ClientCache
	}
	c.Discovery, err = discovery.New(discovery.Options{
		Candidates:        c.Candidates,
		Transport:         c.Transport,
		Cache:             cache,
		Installed:         c.Device,
		Validator:         c.Validator,
		Legacy:            discovery.NewLegacyResolver(c.Device, c.Candidates, c.Validator, cfg.Discovery.LegacyAccountType, log),
		ForceLegacyWindow: cfg.Discovery.ForceLegacyWindow,
		Logger:            log,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	log.Debug("container ready",
		logger.Count(c.Candidates.Len()),
		zap.String("store", store.Namespace()),
		logger.TransportKind(c.Transport.Kind().String()),
	)
	return c, nil
}

func (c *Container) buildTransport(ctx context.Context, cfg *config.Config, log *zap.Logger) (transport.Transport, error) {
	primary := httpipc.New(cfg.Transports.HTTP)

	var types map[string]string
	if cfg.Transports.AccountBackup.Enabled {
		types = cfg.Transports.AccountBackup.AccountTypes
		if len(types) == 0 {
			types = acctbackup.DefaultAccountTypes(broker.KnownCandidates(false))
		} else if missing := acctbackup.Uncovered(c.Candidates, types); len(missing) > 0 {
			return nil, fmt.Errorf("transports.account_backup.account_types: %w: %s",
				ErrUnreachableCandidate, strings.Join(missing, ", "))
		}
	}
	if missing := unreachable(ctx, c.Candidates, primary, types); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnreachableCandidate, strings.Join(missing, ", "))
	}

	support, err := transport.NewCachedSupport(primary, c.Device, cfg.Discovery.SupportCacheSize)
	if err != nil {
		return nil, err
	}
	c.Support = support

	var t transport.Transport = transport.Instrument(support)
	if !cfg.Transports.AccountBackup.Enabled {
		return t, nil
	}
	backup := acctbackup.New(types, c.Device, c.Validator,
		acctbackup.WithTimeout(cfg.Discovery.BackupTimeout),
		acctbackup.WithLogger(log),
	)
	return transport.NewChain(log, t, transport.Instrument(backup)), nil
}

// unreachable lista las candidatas de producción sin endpoint HTTP ni tipo
// de cuenta de backup. types es nil con el backup deshabilitado.
func unreachable(ctx context.Context, set *broker.CandidateSet, primary *httpipc.Client, types map[string]string) []string {
	noBackup := make(map[string]struct{})
	for _, app := range acctbackup.Uncovered(set, types) {
		noBackup[app] = struct{}{}
	}
	var missing []string
	for _, cand := range set.Production() {
		if _, ok := noBackup[cand.ApplicationID]; !ok {
			continue
		}
		if !primary.Supports(ctx, cand.ApplicationID) {
			missing = append(missing, cand.ApplicationID)
		}
	}
	return missing
}

func loadDevice(path string) (*device.Snapshot, error) {
	if path == "" {
		return device.New(), nil
	}
	d, err := device.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", path, err)
	}
	return d, nil
}

// Close libera los stores.
func (c *Container) Close() error {
	if c == nil || c.Stores == nil {
		return nil
	}
	return c.Stores.Close()
}
