package discovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dropDatabas3/brokerdisco/internal/accounts"
	"github.com/dropDatabas3/brokerdisco/internal/activebroker"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/device"
	"github.com/dropDatabas3/brokerdisco/internal/discovery"
	"github.com/dropDatabas3/brokerdisco/internal/signature"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/dropDatabas3/brokerdisco/internal/storage/memory"
	"github.com/dropDatabas3/brokerdisco/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	appA = broker.Candidate{Identity: broker.Identity{ApplicationID: "com.contoso.appa", SigningFingerprint: "hashA", Nickname: "AppA"}}
	appB = broker.Candidate{Identity: broker.Identity{ApplicationID: "com.contoso.appb", SigningFingerprint: "hash123", Nickname: "AppB"}}
)

type env struct {
	set       *broker.CandidateSet
	dev       *device.Snapshot
	tr        *transporttest.Fake
	clk       *clock.Mock
	cache     *activebroker.ClientCache
	validator *signature.Validator
	legacy    *discovery.LegacyResolver
}

func newEnv(store storage.Store) *env {
	if store == nil {
		store = memory.New("client")
	}
	e := &env{
		set: broker.NewCandidateSet(appA, appB),
		dev: device.New(),
		tr:  transporttest.New(broker.KindStructuredRequest),
		clk: clock.NewMock(),
	}
	e.cache = activebroker.NewClientCache(store, e.clk, zap.NewNop())
	e.validator = signature.New(e.set, e.dev, zap.NewNop())
	e.legacy = discovery.NewLegacyResolver(e.dev, e.set, e.validator, "", zap.NewNop())
	return e
}

func (e *env) client(t *testing.T) *discovery.Client {
	t.Helper()
	c, err := discovery.New(discovery.Options{
		Candidates: e.set,
		Transport:  e.tr,
		Cache:      e.cache,
		Installed:  e.dev,
		Validator:  e.validator,
		Legacy:     e.legacy,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return c
}

func (e *env) install(c broker.Candidate) {
	e.dev.Install(c.ApplicationID, "1.0", c.SigningFingerprint, true)
}

func (e *env) registerLegacy(owner string) {
	e.dev.Register(accounts.Authenticator{Type: broker.LegacyAccountType, OwnerApplicationID: owner})
}

func (e *env) cached(t *testing.T) *broker.Identity {
	t.Helper()
	id, err := e.cache.Get(context.Background())
	require.NoError(t, err)
	return id
}

func requireIdentity(t *testing.T, want broker.Candidate, got *broker.Identity) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %s, got %s", want.Key(), got.Key())
}

func TestActiveBroker_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appB)
	e.tr.Winner(appB.ApplicationID, appB.Identity)
	c := e.client(t)

	got, err := c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	assert.Equal(t, []string{appB.ApplicationID}, e.tr.Targets(), "AppA is not installed")

	requireIdentity(t, appB, e.cached(t))

	again, err := c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, again)
	assert.Equal(t, 1, e.tr.Sends(), "second call is served from cache")
}

func TestActiveBroker_UninstallInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appB)
	e.tr.Winner(appB.ApplicationID, appB.Identity)
	c := e.client(t)

	_, err := c.ActiveBroker(ctx, false)
	require.NoError(t, err)

	e.dev.Uninstall(appB.ApplicationID)
	got, err := c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, e.cached(t))
}

func TestActiveBroker_CachedBrokerReplacedByMaliciousApp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	require.NoError(t, e.cache.Set(ctx, appA.Identity))
	e.dev.Install(appA.ApplicationID, "1.0", "someone-else", true)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, e.cached(t))
	assert.Equal(t, 0, e.tr.Sends())
}

func TestActiveBroker_SkipCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	require.NoError(t, e.cache.Set(ctx, appA.Identity))
	e.tr.Winner(appA.ApplicationID, appB.Identity)
	c := e.client(t)

	got, err := c.ActiveBroker(ctx, true)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	requireIdentity(t, appB, e.cached(t))
	assert.Equal(t, 1, e.tr.Sends())
}

func TestActiveBroker_LegacyFallbackWhenUnsupported(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Default = transporttest.Reply{Err: broker.NewError(broker.KindUnsupportedErr, broker.KindStructuredRequest, "", "old broker", nil)}
	e.registerLegacy(appB.ApplicationID)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	assert.Equal(t, 2, e.tr.Sends())
	requireIdentity(t, appB, e.cached(t))

	use, err := e.cache.ShouldUseLegacy(ctx)
	require.NoError(t, err)
	assert.False(t, use, "plain Unsupported does not open the force-legacy window")
}

func TestActiveBroker_LegacyOnlyOpensForceLegacyWindow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Fail(appA.ApplicationID, broker.KindLegacyOnlyErr)
	// error devuelto dentro del payload: se re-lanza tal cual
	e.tr.Reply(appB.ApplicationID, transporttest.Reply{Payload: broker.ErrorPayload(broker.KindLegacyOnlyErr, "disabled")})
	e.registerLegacy(appA.ApplicationID)
	c := e.client(t)

	got, err := c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appA, got)
	assert.Equal(t, 2, e.tr.Sends())

	use, err := e.cache.ShouldUseLegacy(ctx)
	require.NoError(t, err)
	assert.True(t, use)

	// dentro de la ventana no se consulta ningún Transport
	got, err = c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appA, got)
	assert.Equal(t, 2, e.tr.Sends())

	// la ventana se cierra sola
	e.clk.Add(discovery.DefaultForceLegacyWindow + time.Second)
	use, err = e.cache.ShouldUseLegacy(ctx)
	require.NoError(t, err)
	assert.False(t, use)

	require.NoError(t, e.cache.Clear(ctx))
	_, err = c.ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, e.tr.Sends())
}

func TestActiveBroker_ForceLegacyWindowSkipsCachedWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	require.NoError(t, e.cache.Set(ctx, appA.Identity))
	require.NoError(t, e.cache.SetForceLegacyFor(ctx, time.Minute))
	e.registerLegacy(appB.ApplicationID)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	requireIdentity(t, appA, e.cached(t))
	assert.Equal(t, 0, e.tr.Sends())
}

func TestActiveBroker_MissingFieldsIsConnectionFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Reply(appA.ApplicationID, transporttest.Reply{Payload: broker.Payload{broker.KeyActiveBrokerAppID: appA.ApplicationID}})
	e.tr.Winner(appB.ApplicationID, appB.Identity)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	assert.Equal(t, []string{appA.ApplicationID, appB.ApplicationID}, e.tr.Targets())
}

func TestActiveBroker_UnknownReportedBrokerRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.tr.Winner(appA.ApplicationID, broker.NewIdentity("com.evil.app", "evil"))

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, e.cached(t))
}

func TestActiveBroker_ReportedBrokerNotInstalledRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.tr.Winner(appA.ApplicationID, appB.Identity)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveBroker_UnsupportedProbeSkipsCandidate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Unsupported[appA.ApplicationID] = true
	e.tr.Winner(appB.ApplicationID, appB.Identity)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
	assert.Equal(t, []string{appB.ApplicationID}, e.tr.Targets())
}

func TestActiveBroker_MisbehavingCandidateDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Reply(appA.ApplicationID, transporttest.Reply{Err: errors.New("socket closed")})
	e.tr.Winner(appB.ApplicationID, appA.Identity)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appA, got)
}

func TestActiveBroker_NoBrokerInstalled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)

	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, e.tr.Sends())
	assert.Equal(t, 0, e.tr.SupportsCalls())
}

func TestActiveBroker_ConcurrentCallersQueryOnce(t *testing.T) {
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Winner(appA.ApplicationID, appB.Identity)
	e.tr.OnSend = func(broker.Operation) { time.Sleep(50 * time.Millisecond) }

	clients := []*discovery.Client{e.client(t), e.client(t), e.client(t)}
	results := make([]*broker.Identity, len(clients))

	var g errgroup.Group
	for i, c := range clients {
		i, c := i, c
		g.Go(func() error {
			id, err := c.ActiveBroker(context.Background(), false)
			results[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, r := range results {
		requireIdentity(t, appB, r)
	}
	assert.Equal(t, 1, e.tr.Sends())
}

func TestActiveBroker_SkipCacheWaitersReuseFreshResult(t *testing.T) {
	e := newEnv(nil)
	e.install(appA)
	e.install(appB)
	e.tr.Winner(appA.ApplicationID, appB.Identity)

	c := e.client(t)

	// con el lock tomado, los tres llamadores quedan esperando
	lock := e.cache.Lock()
	lock.Lock()

	const callers = 3
	results := make([]*broker.Identity, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			id, err := c.ActiveBroker(context.Background(), true)
			results[i] = id
			return err
		})
	}
	time.Sleep(100 * time.Millisecond)
	lock.Unlock()
	require.NoError(t, g.Wait())

	for _, r := range results {
		requireIdentity(t, appB, r)
	}
	assert.Equal(t, 1, e.tr.Sends())
}

func TestActiveBroker_SkipCacheWithoutContentionQueries(t *testing.T) {
	e := newEnv(nil)
	e.install(appB)
	e.tr.Winner(appB.ApplicationID, appB.Identity)
	c := e.client(t)

	for i := 0; i < 2; i++ {
		got, err := c.ActiveBroker(context.Background(), true)
		require.NoError(t, err)
		requireIdentity(t, appB, got)
	}
	assert.Equal(t, 2, e.tr.Sends())
}

type failingStore struct {
	storage.Store
}

func (failingStore) Put(context.Context, string, string) error { return errors.New("disk full") }

func TestActiveBroker_StorageWriteFailurePropagates(t *testing.T) {
	e := newEnv(failingStore{Store: memory.New("client")})
	e.install(appB)
	e.tr.Winner(appB.ApplicationID, appB.Identity)

	got, err := e.client(t).ActiveBroker(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestActiveBroker_CancelledContextStillCompletes(t *testing.T) {
	e := newEnv(nil)
	e.install(appB)
	e.tr.Winner(appB.ApplicationID, appB.Identity)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := e.client(t).ActiveBroker(ctx, false)
	require.NoError(t, err)
	requireIdentity(t, appB, got)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := discovery.New(discovery.Options{})
	assert.ErrorIs(t, err, discovery.ErrMissingCandidates)

	e := newEnv(nil)
	_, err = discovery.New(discovery.Options{Candidates: e.set, Transport: e.tr, Cache: e.cache, Installed: e.dev, Validator: e.validator})
	assert.ErrorIs(t, err, discovery.ErrMissingLegacy)
}
