// Package redis provides a Redis pub/sub implementation of the messaging interfaces.
//
// Redis pub/sub delivers bare payloads, so Message metadata and reply subjects
// are not carried and Request is unsupported. Queue subscriptions behave as
// fan-out subscriptions.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
)

// Config holds Redis client configuration.
type Config struct {
	// URL is the Redis server URL (e.g., "redis://localhost:6379/0").
	URL string

	// PoolSize overrides the connection pool size when positive.
	PoolSize int

	// MaxRetries overrides the command retry count when non-zero.
	MaxRetries int

	// Timeout bounds the initial PING and each subscription handshake.
	Timeout time.Duration

	// Logger receives handler errors. Defaults to logging.Default().
	Logger *logging.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "redis://localhost:6379/0",
		Timeout: 5 * time.Second,
	}
}

// Client implements messaging.Client on top of Redis PUBLISH/SUBSCRIBE.
type Client struct {
	redis   *redis.Client
	logger  *logging.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs []*subscription
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(cfg Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries != 0 {
		opt.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opt)

	c := newClient(client, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return c, nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(client *redis.Client, cfg Config) *Client {
	return newClient(client, cfg)
}

func newClient(client *redis.Client, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Client{
		redis:   client,
		logger:  logger.With(logging.Transport("redis")),
		timeout: timeout,
	}
}

// Publish sends data to the channel named by subject.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.redis.Publish(ctx, subject, data).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", subject, err)
	}
	return nil
}

// PublishMsg publishes msg.Data to msg.Subject. Metadata and Reply are dropped.
func (c *Client) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return c.Publish(ctx, msg.Subject, msg.Data)
}

// Request always fails with messaging.ErrRequestUnsupported.
func (c *Client) Request(_ context.Context, subject string, _ []byte, _ time.Duration) (*messaging.Message, error) {
	return nil, fmt.Errorf("redis request to %s: %w", subject, messaging.ErrRequestUnsupported)
}

// Subscribe listens on the channel named by subject.
func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	pubsub := c.redis.Subscribe(ctx, subject)
	// Wait for the subscription confirmation so no message published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe to %s: %w", subject, err)
	}

	s := &subscription{subject: subject, pubsub: pubsub, done: make(chan struct{})}
	go c.dispatch(s, handler)

	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

// QueueSubscribe is equivalent to Subscribe; Redis has no queue groups.
func (c *Client) QueueSubscribe(subject, _ string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return c.Subscribe(subject, handler)
}

func (c *Client) dispatch(s *subscription, handler messaging.MessageHandler) {
	defer close(s.done)
	for msg := range s.pubsub.Channel() {
		m := &messaging.Message{
			Subject:   msg.Channel,
			Data:      []byte(msg.Payload),
			Timestamp: time.Now(),
		}
		if err := handler(context.Background(), m); err != nil {
			c.logger.Error("message handler failed", logging.Channel(msg.Channel), logging.Error(err))
		}
	}
}

// Close unsubscribes everything and closes the underlying client.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return c.redis.Close()
}

// Drain waits for every subscription's in-flight handler to return, then closes.
func (c *Client) Drain() error {
	c.mu.Lock()
	subs := c.subs
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
		<-s.done
	}
	return c.Close()
}

// IsConnected reports whether the server answers PING.
func (c *Client) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err() == nil
}

// CheckHealth sends PING and returns its error.
func (c *Client) CheckHealth(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

type subscription struct {
	subject string
	pubsub  *redis.PubSub
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pubsub.Close()
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
