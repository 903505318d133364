package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, 60*time.Minute, c.Discovery.ForceLegacyWindow)
	assert.Equal(t, 5*time.Second, c.Discovery.BackupTimeout)
	assert.Equal(t, broker.LegacyAccountType, c.Discovery.LegacyAccountType)
	assert.Equal(t, broker.RoleClient.Namespace(), c.Stores.Client.Namespace)
	assert.Equal(t, broker.RoleBroker.Namespace(), c.Stores.Broker.Namespace)
	assert.Equal(t, 3, c.CandidateSet().Len())
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "brokerdisco.yaml", `
app:
  env: prod
  role: broker
candidates:
  - app_id: " com.contoso.appa "
    fingerprint: hashA
    nickname: AppA
  - app_id: com.contoso.debug
    fingerprint: hashD
    debug: true
discovery:
  force_legacy_window: 15m
  backup_timeout: 2s
stores:
  client:
    kind: bolt
    bolt:
      path: /tmp/x.db
  broker:
    kind: redis
    redis:
      addr: localhost:6379
      db: 2
transports:
  http:
    com.contoso.appa: http://127.0.0.1:9000
`)
	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, 15*time.Minute, c.Discovery.ForceLegacyWindow)
	assert.Equal(t, 2*time.Second, c.Discovery.BackupTimeout)

	set := c.CandidateSet()
	require.Equal(t, 1, set.Len(), "debug candidate dropped without trust_debug_brokers")
	assert.Equal(t, "com.contoso.appa", set.All()[0].ApplicationID)

	sc := c.Store(broker.RoleClient).StorageConfig()
	assert.Equal(t, storage.DriverBolt, sc.Driver)
	assert.Equal(t, "/tmp/x.db", sc.Bolt.Path)
	bc := c.Store(broker.RoleBroker).StorageConfig()
	assert.Equal(t, 2, bc.Redis.DB)
	assert.Equal(t, "http://127.0.0.1:9000", c.Transports.HTTP["com.contoso.appa"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BROKERDISCO_APP_ENV", "TEST")
	t.Setenv("BROKERDISCO_FORCE_LEGACY_WINDOW", "5m")
	t.Setenv("BROKERDISCO_TRUST_DEBUG_BROKERS", "true")
	t.Setenv("BROKERDISCO_CLIENT_STORE_KIND", "fs")
	t.Setenv("BROKERDISCO_CLIENT_STORE_FS_DIR", "/var/lib/brokerdisco")
	t.Setenv("BROKERDISCO_TRANSPORTS_HTTP", "com.a=http://a, com.b=http://b")

	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "test", c.App.Env)
	assert.Equal(t, 5*time.Minute, c.Discovery.ForceLegacyWindow)
	assert.True(t, c.TrustDebugBrokers)
	assert.Equal(t, "fs", c.Stores.Client.Kind)
	assert.Equal(t, "/var/lib/brokerdisco", c.Stores.Client.FS.Dir)
	assert.Equal(t, map[string]string{"com.a": "http://a", "com.b": "http://b"}, c.Transports.HTTP)
	assert.Greater(t, c.CandidateSet().Len(), 3)
}

func TestLoadDotEnv(t *testing.T) {
	p := writeFile(t, ".env", "BROKERDISCO_SERVER_ADDR=:9999\n")
	t.Setenv("BROKERDISCO_SERVER_ADDR", "")
	require.NoError(t, os.Unsetenv("BROKERDISCO_SERVER_ADDR"))

	LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env"))
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
}

func TestValidate_Errors(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	c.App.Env = "staging"
	c.App.Role = "server"
	c.Candidates = []Candidate{{AppID: "com.a"}}
	c.Stores.Broker.Kind = "etcd"
	c.Stores.Client.Namespace = "shared"

	err = c.Validate()
	require.Error(t, err)
	for _, want := range []string{"app.env", "app.role", "candidates[0]", "stores.broker"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_SharedNamespace(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	c.Stores.Broker.Namespace = c.Stores.Client.Namespace
	assert.ErrorContains(t, c.Validate(), "must not share")
}

func TestParseKVList(t *testing.T) {
	got := parseKVList(" a=1 ,, b = 2 ,bad, =x", ",")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
