package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ibridge-systems/ibridge/common/messaging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "nats", cfg.Transport.Type)
	assert.Equal(t, messaging.DefaultChannel, cfg.Transport.Channel)
	assert.Equal(t, "ibridge-client", cfg.Transport.ClientID)
	assert.Equal(t, 3, cfg.Transport.ConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Transport.RetryWait)

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, 5*time.Second, cfg.NATS.Timeout)
	assert.Empty(t, cfg.NATS.Token)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
transport:
  type: redis
  channel: orders.bridge
nats:
  reconnect_wait: 500ms
redis:
  url: redis://cache:6379/2
  pool_size: 4
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Transport.Type)
	assert.Equal(t, "orders.bridge", cfg.Transport.Channel)
	assert.Equal(t, "ibridge-client", cfg.Transport.ClientID)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, 4, cfg.Redis.PoolSize)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "transport:\n  type: redis\n")
	t.Setenv("IBRIDGE_TRANSPORT_TYPE", "local")
	t.Setenv("IBRIDGE_NATS_URL", "nats://broker:4222")
	t.Setenv("IBRIDGE_NATS_TOKEN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Transport.Type)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "s3cret", cfg.NATS.Token)
}

func TestLoad_ConfigDirEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("transport:\n  client_id: worker-9\n"), 0600))
	t.Setenv("IBRIDGE_CONFIG_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "worker-9", cfg.Transport.ClientID)

	cliCfg, err := LoadCLI()
	require.NoError(t, err)
	assert.Equal(t, "worker-9", cliCfg.Transport.ClientID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "transport: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "nats:\n  timeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestWriteYAML(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hidden"

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "transport:\n  type: nats\n")

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "****", decoded["nats"]["password"])
	assert.NotContains(t, decoded["nats"], "token")
	assert.NotContains(t, decoded["transport"], "signing_key")
}

func TestWriteYAML_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Transport.SigningKey = "topsecret-hmac"
	cfg.NATS.Username = "bridge"
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "s3cr3t-token"

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	out := buf.String()

	for _, secret := range []string{"topsecret-hmac", "hunter2", "s3cr3t-token"} {
		assert.NotContains(t, out, secret)
	}
	assert.Equal(t, 3, strings.Count(out, "****"))
	assert.Contains(t, out, "username: bridge")

	// The caller's config keeps the real values.
	assert.Equal(t, "topsecret-hmac", cfg.Transport.SigningKey)
	assert.Equal(t, "hunter2", cfg.NATS.Password)
	assert.Equal(t, "s3cr3t-token", cfg.NATS.Token)
}
