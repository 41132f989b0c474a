// Package config provides centralized configuration management for the bridge tools.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ibridge-systems/ibridge/common/messaging"
)

// EnvPrefix prefixes every environment override, e.g. IBRIDGE_NATS_URL.
const EnvPrefix = "IBRIDGE"

// DefaultConfigDir is used when IBRIDGE_CONFIG_DIR is not set.
const DefaultConfigDir = "/etc/ibridge"

// redacted replaces secret values in WriteYAML output.
const redacted = "****"

// Config is the master configuration struct.
type Config struct {
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	NATS      NATSConfig      `mapstructure:"nats" yaml:"nats"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// TransportConfig selects the broker envelopes are sent through
type TransportConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`           // "nats", "redis" or "local"
	Channel  string `mapstructure:"channel" yaml:"channel"`     // Subject/channel the bridge server listens on
	ClientID string `mapstructure:"client_id" yaml:"client_id"` // Identifies this client to the broker

	// ConnectRetries is how many times a failed initial connection is retried.
	ConnectRetries int           `mapstructure:"connect_retries" yaml:"connect_retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait" yaml:"retry_wait"` // First backoff interval

	// SigningKey enables HMAC signatures on published envelopes when set.
	SigningKey string `mapstructure:"signing_key" yaml:"signing_key,omitempty"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Username      string        `mapstructure:"username" yaml:"username,omitempty"`
	Password      string        `mapstructure:"password" yaml:"password,omitempty"`
	Token         string        `mapstructure:"token" yaml:"token,omitempty"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size" yaml:"pool_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when no file or environment override exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration from path and environment variables.
// An empty path means $IBRIDGE_CONFIG_DIR/config.yaml. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		configDir := os.Getenv(EnvPrefix + "_CONFIG_DIR")
		if configDir == "" {
			configDir = DefaultConfigDir
		}
		path = filepath.Join(configDir, "config.yaml")
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file - don't fail if file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// WriteYAML writes c to w as YAML. The signing key and NATS credentials are
// masked; c itself is left untouched.
func (c *Config) WriteYAML(w io.Writer) error {
	out := *c
	out.Transport.SigningKey = redact(out.Transport.SigningKey)
	out.NATS.Password = redact(out.NATS.Password)
	out.NATS.Token = redact(out.NATS.Token)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Transport defaults
	v.SetDefault("transport.type", "nats")
	v.SetDefault("transport.channel", messaging.DefaultChannel)
	v.SetDefault("transport.client_id", "ibridge-client")
	v.SetDefault("transport.connect_retries", 3)
	v.SetDefault("transport.retry_wait", "500ms")
	v.SetDefault("transport.signing_key", "")

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("nats.username", "")
	v.SetDefault("nats.password", "")
	v.SetDefault("nats.token", "")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
