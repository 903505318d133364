package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// fsEnv apunta ambos roles a un directorio temporal para que el estado
// sobreviva entre invocaciones.
func fsEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BROKERDISCO_APP_ENV", "test")
	t.Setenv("BROKERDISCO_CLIENT_STORE_KIND", "fs")
	t.Setenv("BROKERDISCO_CLIENT_STORE_FS_DIR", dir)
	t.Setenv("BROKERDISCO_BROKER_STORE_KIND", "fs")
	t.Setenv("BROKERDISCO_BROKER_STORE_FS_DIR", dir)
	// la flota conocida solo es alcanzable por el canal de backup
	t.Setenv("BROKERDISCO_ACCOUNT_BACKUP_ENABLED", "true")
	return dir
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	devicePath := filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(devicePath, []byte(`
apps:
  - app_id: com.contoso.appa
    version: "1.0"
    fingerprint: hashA
`), 0o600))

	cfgPath := filepath.Join(dir, "brokerdisco.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
candidates:
  - app_id: com.contoso.appa
    fingerprint: hashA
transports:
  http:
    com.contoso.appa: http://127.0.0.1:1
device:
  path: `+devicePath+`
`), 0o600))
	return cfgPath
}

func TestDiscover_NoBroker(t *testing.T) {
	fsEnv(t)
	out, err := run(t, "discover", "--out", "json")
	require.NoError(t, err)

	var got identityOut
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Found)
}

func TestCache_ShowAndClear(t *testing.T) {
	dir := fsEnv(t)
	cfg := writeConfig(t, dir)

	out, err := run(t, "--config", cfg, "cache", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no active broker")

	out, err = run(t, "--config", cfg, "cache", "clear", "--out", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cleared":true}`, out)
}

func TestForceLegacy_OpenAndClose(t *testing.T) {
	fsEnv(t)

	out, err := run(t, "force-legacy", "--for", "1h", "--out", "json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["active"])
	assert.NotEmpty(t, got["until"])

	// la ventana persiste entre procesos
	out, err = run(t, "force-legacy")
	require.NoError(t, err)
	assert.Contains(t, out, "active until")

	out, err = run(t, "force-legacy", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "inactive")
}

func TestForceLegacy_RejectsBrokerRole(t *testing.T) {
	fsEnv(t)
	_, err := run(t, "--role", "broker", "force-legacy", "--for", "1h")
	assert.Error(t, err)
}

func TestInvalidOut(t *testing.T) {
	fsEnv(t)
	_, err := run(t, "discover", "--out", "xml")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	fsEnv(t)
	t.Setenv("BROKERDISCO_ROLE", "nobody")
	_, err := run(t, "discover")
	assert.Error(t, err)
}

func TestDiscover_UnreachableFleet(t *testing.T) {
	fsEnv(t)
	t.Setenv("BROKERDISCO_ACCOUNT_BACKUP_ENABLED", "false")
	_, err := run(t, "discover")
	assert.Error(t, err)
}
