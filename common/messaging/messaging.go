// Package messaging provides abstractions for the transports that carry bridge envelopes.
// It defines interfaces that let the bridge publish and subscribe to encoded
// envelopes without being coupled to a specific broker implementation.
package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrRequestUnsupported is returned by transports that cannot carry a reply subject.
var ErrRequestUnsupported = errors.New("transport does not support request/reply")

// Metadata header names attached to published envelopes.
// Receivers may route on them without decoding the payload.
const (
	HeaderMessageID   = "Ibridge-Msgid"
	HeaderMessageType = "Ibridge-Msgtype"
	HeaderModule      = "Ibridge-Module"
	HeaderSignature   = "Ibridge-Signature"
)

// Message represents a message received from or sent to a transport.
type Message struct {
	// Subject is the channel the message was published to.
	Subject string

	// Data is the raw payload, normally an encoded envelope.
	Data []byte

	// Reply is an optional subject for request/reply patterns.
	Reply string

	// Metadata contains optional key-value pairs for message headers.
	// Transports without header support drop it.
	Metadata map[string]string

	// Timestamp is when the message was published or received.
	Timestamp time.Time
}

// NewMessage builds a Message for subject, applying opts.
func NewMessage(subject string, data []byte, opts ...PublishOption) *Message {
	o := &publishOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &Message{
		Subject:   subject,
		Data:      data,
		Reply:     o.reply,
		Metadata:  o.headers,
		Timestamp: time.Now(),
	}
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string

	// IsValid returns true if the subscription is still active.
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to the specified subject. Fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with headers and reply subject.
	PublishMsg(ctx context.Context, msg *Message) error

	// Request sends a message and waits up to timeout for a response.
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe creates a fan-out subscription to the specified subject.
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe creates a subscription where messages are load-balanced
	// across subscribers in the same queue group. Transports without queue
	// groups fall back to fan-out.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)

	// Close releases any resources and unsubscribes all active subscriptions.
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}

// PublishOption configures message publishing behavior.
type PublishOption func(*publishOptions)

type publishOptions struct {
	headers map[string]string
	reply   string
}

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(o *publishOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithReply sets the reply subject of the published message.
func WithReply(subject string) PublishOption {
	return func(o *publishOptions) {
		o.reply = subject
	}
}
