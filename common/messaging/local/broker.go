// Package local provides an in-process implementation of the messaging interfaces.
//
// Messages are delivered synchronously on the publishing goroutine, which makes
// the broker suitable for embedding a bridge server in the same process and for tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ibridge-systems/ibridge/common/idgen"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
)

var (
	// ErrClosed is returned by operations on a closed Broker.
	ErrClosed = errors.New("local broker is closed")

	// ErrNoResponders is returned by Request when nothing subscribes to the subject.
	ErrNoResponders = errors.New("no responders available for request")
)

// Broker is an in-memory messaging.Client.
type Broker struct {
	logger *logging.Logger

	mu     sync.RWMutex
	subs   map[string][]*subscription
	queues map[string]int // round-robin cursor per subject+queue
	closed bool
}

// NewBroker returns an empty broker. A nil logger uses logging.Default().
func NewBroker(logger *logging.Logger) *Broker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broker{
		logger: logger.With(logging.Transport("local")),
		subs:   make(map[string][]*subscription),
		queues: make(map[string]int),
	}
}

// Publish delivers data to every subscriber of subject.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	return b.PublishMsg(ctx, messaging.NewMessage(subject, data))
}

// PublishMsg delivers msg to every fan-out subscriber of msg.Subject and to
// one member of each queue group.
func (b *Broker) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	_, err := b.publish(ctx, msg)
	return err
}

func (b *Broker) publish(ctx context.Context, msg *messaging.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	targets, err := b.route(msg.Subject)
	if err != nil {
		return 0, err
	}

	for _, s := range targets {
		b.deliver(ctx, s, msg)
	}
	return len(targets), nil
}

// Request publishes data with a private reply subject and waits for the first answer.
func (b *Broker) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	inbox := messaging.ReplyChannel(subject, idgen.NewID())
	replies := make(chan *messaging.Message, 1)

	sub, err := b.Subscribe(inbox, func(_ context.Context, msg *messaging.Message) error {
		select {
		case replies <- msg:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	n, err := b.publish(ctx, messaging.NewMessage(subject, data, messaging.WithReply(inbox)))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("request to %s: %w", subject, ErrNoResponders)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("request to %s: %w", subject, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers a fan-out handler for subject.
func (b *Broker) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return b.add(subject, "", handler)
}

// QueueSubscribe registers handler in queue; each message reaches one member of the queue.
func (b *Broker) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return b.add(subject, queue, handler)
}

// Close drops every subscription. Further operations return ErrClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, list := range b.subs {
		for _, s := range list {
			s.invalidate()
		}
	}
	b.subs = make(map[string][]*subscription)
	b.closed = true
	return nil
}

// Drain is Close; delivery is synchronous so nothing is in flight.
func (b *Broker) Drain() error {
	return b.Close()
}

// IsConnected reports whether the broker is still open.
func (b *Broker) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// CheckHealth returns ErrClosed once the broker is closed.
func (b *Broker) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.IsConnected() {
		return ErrClosed
	}
	return nil
}

func (b *Broker) add(subject, queue string, handler messaging.MessageHandler) (*subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	s := &subscription{broker: b, subject: subject, queue: queue, handler: handler, valid: true}
	b.subs[subject] = append(b.subs[subject], s)
	return s, nil
}

func (b *Broker) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.subject]
	for i, cur := range list {
		if cur == s {
			b.subs[s.subject] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[s.subject]) == 0 {
		delete(b.subs, s.subject)
	}
}

// route picks the subscriptions that receive the next message on subject.
func (b *Broker) route(subject string) ([]*subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	var targets []*subscription
	groups := make(map[string][]*subscription)
	var order []string
	for _, s := range b.subs[subject] {
		if s.queue == "" {
			targets = append(targets, s)
			continue
		}
		if _, ok := groups[s.queue]; !ok {
			order = append(order, s.queue)
		}
		groups[s.queue] = append(groups[s.queue], s)
	}

	for _, queue := range order {
		members := groups[queue]
		key := subject + "|" + queue
		targets = append(targets, members[b.queues[key]%len(members)])
		b.queues[key]++
	}
	return targets, nil
}

func (b *Broker) deliver(ctx context.Context, s *subscription, msg *messaging.Message) {
	if !s.IsValid() {
		return
	}

	cp := *msg
	cp.Metadata = maps.Clone(msg.Metadata)
	if id := cp.Metadata[messaging.HeaderMessageID]; id != "" {
		ctx = logging.ContextWithMessageID(ctx, id)
	}

	if err := s.handler(ctx, &cp); err != nil {
		b.logger.ErrorContext(ctx, "message handler failed",
			logging.Channel(s.subject), "queue", s.queue, logging.Error(err))
	}
}

type subscription struct {
	broker  *Broker
	subject string
	queue   string
	handler messaging.MessageHandler

	mu    sync.Mutex
	valid bool
}

func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	wasValid := s.valid
	s.valid = false
	s.mu.Unlock()

	if wasValid {
		s.broker.remove(s)
	}
	return nil
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *subscription) invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}
