// Package bridge sends command and event envelopes to a bridge server over a
// messaging transport.
//
// Delivery is fire-and-forget: a nil error means the transport accepted the
// payload, not that a server handled it.
package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ibridge-systems/ibridge/common/envelope"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
	"github.com/ibridge-systems/ibridge/common/metrics"
	"github.com/ibridge-systems/ibridge/common/signing"
)

// Notifier publishes envelopes to one channel.
type Notifier struct {
	pub     messaging.Publisher
	channel string
	logger  *logging.Logger
	ids     envelope.IDGenerator
	signer  *signing.Signer
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger. The default is logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithIDGenerator sets the generator used for envelopes the Notifier builds itself.
func WithIDGenerator(g envelope.IDGenerator) Option {
	return func(n *Notifier) {
		n.ids = g
	}
}

// WithSigner adds an Ibridge-Signature header computed over the message ID and wire string.
func WithSigner(s *signing.Signer) Option {
	return func(n *Notifier) {
		n.signer = s
	}
}

// NewNotifier returns a Notifier publishing on channel, or on
// messaging.DefaultChannel when channel is empty.
func NewNotifier(pub messaging.Publisher, channel string, opts ...Option) *Notifier {
	if channel == "" {
		channel = messaging.DefaultChannel
	}
	n := &Notifier{
		pub:     pub,
		channel: channel,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Channel returns the channel envelopes are published to.
func (n *Notifier) Channel() string {
	return n.channel
}

// Notify validates and encodes env, then publishes the wire string with
// message ID, type and module headers.
func (n *Notifier) Notify(ctx context.Context, env *envelope.Envelope) error {
	kind := env.Kind().String()

	if err := env.Validate(); err != nil {
		metrics.RecordPublished(kind, metrics.StatusInvalid)
		return err
	}

	ctx = logging.ContextWithMessageID(ctx, env.ID())
	log := n.logger.WithContext(ctx).With(
		logging.MessageType(kind),
		logging.Module(env.Module()),
		logging.Submodule(env.Submodule()),
		logging.Name(env.Name()),
		logging.Channel(n.channel),
	)

	wire, err := env.Encode()
	if err != nil {
		metrics.RecordPublished(kind, metrics.StatusError)
		log.Error("failed to encode envelope", logging.Error(err))
		return err
	}
	metrics.RecordEncoded(kind, len(wire))

	headers := []messaging.PublishOption{
		messaging.WithHeader(messaging.HeaderMessageID, env.ID()),
		messaging.WithHeader(messaging.HeaderMessageType, strconv.Itoa(int(env.Kind()))),
		messaging.WithHeader(messaging.HeaderModule, env.ModuleID()),
	}
	if n.signer != nil {
		headers = append(headers, messaging.WithHeader(messaging.HeaderSignature, n.signer.Sign(env.ID(), []byte(wire))))
	}
	msg := messaging.NewMessage(n.channel, []byte(wire), headers...)

	start := time.Now()
	err = n.pub.PublishMsg(ctx, msg)
	metrics.ObservePublishDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordPublished(kind, metrics.StatusError)
		log.Error("failed to publish envelope", logging.Error(err))
		return fmt.Errorf("publish %s %s to %s: %w", kind, env.Name(), n.channel, err)
	}

	metrics.RecordPublished(kind, metrics.StatusSuccess)
	log.Debug("envelope published", logging.Bytes(len(wire)))
	return nil
}

// SendCommand builds a command addressed to module/submodule and publishes it.
// It returns the message ID.
func (n *Notifier) SendCommand(ctx context.Context, module, submodule, command string, params envelope.Params, options map[string]any) (string, error) {
	env := envelope.CreateCommand(module, submodule, command, params, n.envelopeOptions()...)
	env.SetOptions(options)
	return env.ID(), n.Notify(ctx, env)
}

// SendEvent builds an event addressed to module/submodule and publishes it.
// It returns the message ID.
func (n *Notifier) SendEvent(ctx context.Context, module, submodule, event string, params envelope.Params, options map[string]any) (string, error) {
	env := envelope.CreateEvent(module, submodule, event, params, n.envelopeOptions()...)
	env.SetOptions(options)
	return env.ID(), n.Notify(ctx, env)
}

func (n *Notifier) envelopeOptions() []envelope.Option {
	if n.ids == nil {
		return nil
	}
	return []envelope.Option{envelope.WithGenerator(n.ids)}
}
