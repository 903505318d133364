package transport_test

import (
	"context"
	"testing"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/transport"
	"github.com/dropDatabas3/brokerdisco/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const target = "com.contoso.broker"

func TestChain_PrimarySuccessSkipsBackups(t *testing.T) {
	primary := transporttest.New(broker.KindStructuredRequest).Winner(target, broker.NewIdentity(target, "p"))
	backup := transporttest.New(broker.KindAccountRegistryBackup)

	got, err := transport.WithBackup(primary, backup).Send(context.Background(), broker.NewDiscoveryOperation(target))
	require.NoError(t, err)
	assert.Equal(t, "p", got.Get(broker.KeyActiveBrokerFingerprint))
	assert.Equal(t, 0, backup.Sends())
}

func TestChain_FallbackOrder(t *testing.T) {
	primary := transporttest.New(broker.KindStructuredRequest).Fail(target, broker.KindConnectionErr)
	b1 := transporttest.New(broker.KindPersistentConnection).Fail(target, broker.KindUnsupportedErr)
	b2 := transporttest.New(broker.KindAccountRegistryBackup).Winner(target, broker.NewIdentity(target, "from-b2"))
	b3 := transporttest.New(broker.KindHTTP).Winner(target, broker.NewIdentity(target, "from-b3"))

	chain := transport.WithBackup(primary, b1, b2, b3)
	got, err := chain.Send(context.Background(), broker.NewDiscoveryOperation(target))
	require.NoError(t, err)
	assert.Equal(t, "from-b2", got.Get(broker.KeyActiveBrokerFingerprint))
	assert.Equal(t, broker.KindStructuredRequest, chain.Kind())
	assert.Equal(t, 1, primary.Sends())
	assert.Equal(t, 1, b1.Sends())
	assert.Equal(t, 1, b2.Sends())
	assert.Equal(t, 0, b3.Sends())
}

func TestChain_AllFailReturnsPrimaryError(t *testing.T) {
	primaryErr := broker.NewError(broker.KindConnectionErr, broker.KindStructuredRequest, target, "primary down", nil)
	primary := transporttest.New(broker.KindStructuredRequest).Reply(target, transporttest.Reply{Err: primaryErr})
	b1 := transporttest.New(broker.KindPersistentConnection).Fail(target, broker.KindValidationErr)
	b2 := transporttest.New(broker.KindAccountRegistryBackup).Fail(target, broker.KindUnsupportedErr)

	_, err := transport.WithBackup(primary, b1, b2).Send(context.Background(), broker.NewDiscoveryOperation(target))
	require.Error(t, err)
	assert.Same(t, primaryErr, err)
	assert.Equal(t, 1, b1.Sends())
	assert.Equal(t, 1, b2.Sends())
}

func TestChain_SupportsDelegatesToPrimaryOnly(t *testing.T) {
	primary := transporttest.New(broker.KindStructuredRequest)
	primary.Unsupported[target] = true
	backup := transporttest.New(broker.KindAccountRegistryBackup)

	chain := transport.WithBackup(primary, backup)
	assert.False(t, chain.Supports(context.Background(), target))
	assert.Equal(t, 0, backup.SupportsCalls())
}

func TestChain_NoBackups(t *testing.T) {
	primary := transporttest.New(broker.KindHTTP).Fail(target, broker.KindLegacyOnlyErr)
	_, err := transport.WithBackup(primary).Send(context.Background(), broker.NewDiscoveryOperation(target))
	assert.True(t, broker.IsLegacyOnly(err))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", transport.Result(nil))
	assert.Equal(t, "legacy_only", transport.Result(broker.NewError(broker.KindLegacyOnlyErr, broker.KindHTTP, target, "", nil)))
	assert.Equal(t, "error", transport.Result(context.Canceled))
}

func TestInstrument_PassesThrough(t *testing.T) {
	inner := transporttest.New(broker.KindHTTP).Winner(target, broker.NewIdentity(target, "h"))
	wrapped := transport.Instrument(inner)

	got, err := wrapped.Send(context.Background(), broker.NewDiscoveryOperation(target))
	require.NoError(t, err)
	assert.Equal(t, target, got.Get(broker.KeyActiveBrokerAppID))
	assert.Equal(t, broker.KindHTTP, wrapped.Kind())
	assert.True(t, wrapped.Supports(context.Background(), target))
}

func TestChain_LogsCombinedBackupErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	primary := transporttest.New(broker.KindStructuredRequest).Fail(target, broker.KindConnectionErr)
	b1 := transporttest.New(broker.KindPersistentConnection).Fail(target, broker.KindValidationErr)
	b2 := transporttest.New(broker.KindAccountRegistryBackup).Fail(target, broker.KindUnsupportedErr)

	_, err := transport.NewChain(zap.New(core), primary, b1, b2).Send(context.Background(), broker.NewDiscoveryOperation(target))
	require.Error(t, err)

	entries := logs.FilterMessage("all backup transports failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Contains(t, fields, "error")
	msg, ok := fields["error"].(string)
	require.True(t, ok)
	assert.Contains(t, msg, "validation_failure")
	assert.Contains(t, msg, "unsupported")
}
