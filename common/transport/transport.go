// Package transport opens the messaging client selected by configuration.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ibridge-systems/ibridge/common/config"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
	"github.com/ibridge-systems/ibridge/common/messaging/local"
	natsclient "github.com/ibridge-systems/ibridge/common/messaging/nats"
	redisclient "github.com/ibridge-systems/ibridge/common/messaging/redis"
)

// Transport type names accepted in transport.type.
const (
	TypeNATS  = "nats"
	TypeRedis = "redis"
	TypeLocal = "local"
)

// ErrUnknownTransport is returned by Open for an unregistered transport type.
var ErrUnknownTransport = errors.New("unknown transport type")

// Opener builds a client from the loaded configuration.
type Opener func(ctx context.Context, cfg *config.Config, logger *logging.Logger) (messaging.Client, error)

var openers = map[string]Opener{
	TypeNATS:  openNATS,
	TypeRedis: openRedis,
	TypeLocal: openLocal,
}

// Types lists the supported transport types in sorted order.
func Types() []string {
	types := make([]string, 0, len(openers))
	for t := range openers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Open connects to the transport named by cfg.Transport.Type (case-insensitive).
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (messaging.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Transport.Type))
	open, ok := openers[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownTransport, cfg.Transport.Type, strings.Join(Types(), ", "))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var client messaging.Client
	connect := func() error {
		c, err := open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	retryLog := func(err error, wait time.Duration) {
		logger.Warn("transport connect failed, retrying",
			logging.Transport(kind), "wait", wait.String(), logging.Error(err))
	}

	if err := backoff.RetryNotify(connect, connectBackoff(ctx, cfg.Transport), retryLog); err != nil {
		return nil, fmt.Errorf("open %s transport: %w", kind, err)
	}

	logger.Debug("transport opened", logging.Transport(kind), logging.Channel(cfg.Transport.Channel))
	return client, nil
}

// connectBackoff retries the initial connection ConnectRetries times with
// exponential waits starting at RetryWait, stopping early when ctx ends.
func connectBackoff(ctx context.Context, tc config.TransportConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if tc.RetryWait > 0 {
		b.InitialInterval = tc.RetryWait
	}
	b.MaxElapsedTime = 0

	retries := tc.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func openNATS(_ context.Context, cfg *config.Config, logger *logging.Logger) (messaging.Client, error) {
	natsCfg := natsclient.DefaultConfig()
	if cfg.NATS.URL != "" {
		natsCfg.URL = cfg.NATS.URL
	}
	if cfg.Transport.ClientID != "" {
		natsCfg.Name = cfg.Transport.ClientID
	}
	natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
	if cfg.NATS.ReconnectWait > 0 {
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
	}
	if cfg.NATS.Timeout > 0 {
		natsCfg.Timeout = cfg.NATS.Timeout
	}
	natsCfg.Username = cfg.NATS.Username
	natsCfg.Password = cfg.NATS.Password
	natsCfg.Token = cfg.NATS.Token
	natsCfg.Logger = logger

	return natsclient.NewClient(natsCfg)
}

func openRedis(_ context.Context, cfg *config.Config, logger *logging.Logger) (messaging.Client, error) {
	redisCfg := redisclient.DefaultConfig()
	if cfg.Redis.URL != "" {
		redisCfg.URL = cfg.Redis.URL
	}
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MaxRetries = cfg.Redis.MaxRetries
	redisCfg.Logger = logger

	return redisclient.NewClient(redisCfg)
}

func openLocal(_ context.Context, _ *config.Config, logger *logging.Logger) (messaging.Client, error) {
	return local.NewBroker(logger), nil
}
