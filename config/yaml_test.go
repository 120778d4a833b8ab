package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testYaml = `
server:
  address: ":5050"
  name: test-kernel
  version: 1.2.3
  log_level: debug
  throttling_rps: 25
  max_message_size: 2048
  ssl:
    enabled: true
    mode: acme
    acme_domains: [example.com]
    acme_email: ops@example.com

users:
  alice:
    keys:
      - ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad

data:
  driver: postgres
  dsn: postgres://localhost/zkernel

definitions: ./definitions.yaml
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYamlConfigLoads(t *testing.T) {
	c, err := NewYamlConfig(writeConfig(t, testYaml), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	addr, err := c.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":5050", addr)

	name, _ := c.ServerName()
	assert.Equal(t, "test-kernel", name)
	version, _ := c.ServerVersion()
	assert.Equal(t, "1.2.3", version)
	level, _ := c.LogLevel()
	assert.Equal(t, "debug", level)

	rps, _ := c.ThrottlingRPS()
	assert.Equal(t, 25, rps)
	rpm, _ := c.ThrottlingRPM()
	assert.Equal(t, defaultThrottlingRPM, rpm, "unset limit keeps the default")
	size, _ := c.MaxMessageSize()
	assert.Equal(t, 2048, size)

	enabled, _ := c.SSLEnabled()
	assert.True(t, enabled)
	mode, _ := c.SSLMode()
	assert.Equal(t, "acme", mode)
	domains, _ := c.SSLAcmeDomains()
	assert.Equal(t, []string{"example.com"}, domains)

	driver, _ := c.DataDriver()
	assert.Equal(t, "postgres", driver)
	dsn, _ := c.DataDSN()
	assert.Equal(t, "postgres://localhost/zkernel", dsn)
	defs, _ := c.DefinitionsPath()
	assert.Equal(t, "./definitions.yaml", defs)

	assert.NoError(t, c.Status(context.Background()))
}

func TestYamlConfigUserLookup(t *testing.T) {
	c, err := NewYamlConfig(writeConfig(t, testYaml), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	// The stored hash is sha256("abc").
	userID, err := c.GetUserIDByKeyHash(HashAPIKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	// Hash matching is case-insensitive.
	userID, err = c.GetUserIDByKeyHash("BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = c.GetUserIDByKeyHash(HashAPIKey("wrong"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.GetUserIDByKeyHash("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestYamlConfigMissingAddress(t *testing.T) {
	c, err := NewYamlConfig(writeConfig(t, "server:\n  name: x\n"), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ListenAddr()
	assert.Error(t, err)
}

func TestYamlConfigMissingFile(t *testing.T) {
	_, err := NewYamlConfig(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfigBadUpdateKeepsState(t *testing.T) {
	path := writeConfig(t, testYaml)
	c, err := NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
	assert.Error(t, c.Update())

	addr, err := c.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":5050", addr)
}

func TestYamlConfigWatchReloads(t *testing.T) {
	path := writeConfig(t, testYaml)
	c, err := NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Watch())

	updated := "server:\n  address: \":6060\"\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		addr, err := c.ListenAddr()
		return err == nil && addr == ":6060"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestInternalConfigDefaults(t *testing.T) {
	c := NewInternalConfig()

	addr, err := c.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":4040", addr)

	driver, _ := c.DataDriver()
	assert.Equal(t, "sqlite", driver)
	dsn, _ := c.DataDSN()
	assert.Equal(t, ":memory:", dsn)

	c.SetListenAddr(":0")
	addr, _ = c.ListenAddr()
	assert.Equal(t, ":0", addr)

	c.SetUserKey("bob", "secret")
	userID, err := c.GetUserIDByKeyHash(HashAPIKey("secret"))
	require.NoError(t, err)
	assert.Equal(t, "bob", userID)

	assert.NoError(t, c.Status(context.Background()))
	assert.NoError(t, c.Close())
}

func TestHashAPIKey(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashAPIKey("abc"))
	assert.Empty(t, HashAPIKey(""))
}
