package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibridge-systems/ibridge/common/envelope"
	"github.com/ibridge-systems/ibridge/common/idgen"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
	"github.com/ibridge-systems/ibridge/common/messaging/local"
	"github.com/ibridge-systems/ibridge/common/metrics"
	"github.com/ibridge-systems/ibridge/common/signing"
)

// capture subscribes to channel on a fresh local broker and records every message.
func capture(t *testing.T, channel string) (*local.Broker, *[]*messaging.Message) {
	t.Helper()
	b := local.NewBroker(logging.Discard())
	t.Cleanup(func() { _ = b.Close() })

	var got []*messaging.Message
	_, err := b.Subscribe(channel, func(_ context.Context, msg *messaging.Message) error {
		got = append(got, msg)
		return nil
	})
	require.NoError(t, err)
	return b, &got
}

func decodeWire(t *testing.T, data []byte) map[string]any {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	return fields
}

type failingPublisher struct {
	err   error
	calls int
}

func (f *failingPublisher) Publish(context.Context, string, []byte) error { return f.err }
func (f *failingPublisher) PublishMsg(context.Context, *messaging.Message) error {
	f.calls++
	return f.err
}
func (f *failingPublisher) Request(context.Context, string, []byte, time.Duration) (*messaging.Message, error) {
	return nil, f.err
}
func (f *failingPublisher) Close() error { return nil }

func TestNewNotifier_DefaultChannel(t *testing.T) {
	assert.Equal(t, messaging.DefaultChannel, NewNotifier(nil, "").Channel())
	assert.Equal(t, "orders.bridge", NewNotifier(nil, "orders.bridge").Channel())
}

func TestNotify(t *testing.T) {
	b, got := capture(t, "bridge")
	n := NewNotifier(b, "bridge", WithLogger(logging.Discard()))

	env := envelope.NewEvent()
	env.SetAddress("orders", "api", "order_created")
	env.SetParameters(envelope.NewParams([]any{42}, map[string]any{"rush": true}))
	env.SetOptions(map[string]any{"priority": "high"})

	wire, err := env.Encode()
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), env))
	require.Len(t, *got, 1)

	msg := (*got)[0]
	assert.Equal(t, "bridge", msg.Subject)
	assert.Equal(t, wire, string(msg.Data))
	assert.Equal(t, env.ID(), msg.Metadata[messaging.HeaderMessageID])
	assert.Equal(t, "1", msg.Metadata[messaging.HeaderMessageType])
	assert.Equal(t, "orders@api", msg.Metadata[messaging.HeaderModule])

	assert.NotContains(t, msg.Metadata, messaging.HeaderSignature)

	fields := decodeWire(t, msg.Data)
	assert.Equal(t, float64(1), fields["msgtype"])
	assert.Equal(t, "order_created", fields["event"])
	assert.Equal(t, []any{[]any{float64(42)}, map[string]any{"rush": true}}, fields["data"])
	assert.Equal(t, map[string]any{"priority": "high"}, fields["options"])
}

func TestNotify_RejectsIncompleteEnvelope(t *testing.T) {
	tests := []struct {
		name string
		env  func() *envelope.Envelope
	}{
		{"unaddressed", func() *envelope.Envelope { return envelope.NewCommand() }},
		{"no module", func() *envelope.Envelope {
			return envelope.CreateCommand("", "api", "place_order", envelope.Params{})
		}},
		{"no name", func() *envelope.Envelope {
			return envelope.CreateEvent("orders", "api", "", envelope.Params{})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &failingPublisher{}
			n := NewNotifier(pub, "", WithLogger(logging.Discard()))

			env := tt.env()
			c := metrics.EnvelopesPublished.WithLabelValues(env.Kind().String(), metrics.StatusInvalid)
			before := testutil.ToFloat64(c)

			err := n.Notify(context.Background(), env)
			assert.ErrorIs(t, err, envelope.ErrIncompleteEnvelope)
			assert.Zero(t, pub.calls)
			assert.Equal(t, before+1, testutil.ToFloat64(c))
		})
	}
}

func TestNotify_EncodeError(t *testing.T) {
	pub := &failingPublisher{}
	n := NewNotifier(pub, "", WithLogger(logging.Discard()))

	env := envelope.CreateCommand("orders", "api", "place_order", envelope.Args(make(chan int)))

	failed := metrics.EnvelopesPublished.WithLabelValues("command", metrics.StatusError)
	beforeFailed := testutil.ToFloat64(failed)
	beforeSamples := publishSamples(t)

	err := n.Notify(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal command envelope")
	assert.Zero(t, pub.calls)

	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	assert.Equal(t, beforeSamples, publishSamples(t), "nothing reached the transport, so no duration is observed")
}

// publishSamples reads the publish duration histogram's sample count.
func publishSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.PublishDuration.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestNotify_PublishError(t *testing.T) {
	var buf bytes.Buffer
	pub := &failingPublisher{err: errors.New("broker down")}
	n := NewNotifier(pub, "bridge", WithLogger(logging.NewWithWriter(&buf, slog.LevelDebug, "json")))

	c := metrics.EnvelopesPublished.WithLabelValues("command", metrics.StatusError)
	before := testutil.ToFloat64(c)

	env := envelope.CreateCommand("orders", "api", "place_order", envelope.Params{})
	err := n.Notify(context.Background(), env)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish command place_order to bridge")
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	assert.Contains(t, buf.String(), "failed to publish envelope")
	assert.Contains(t, buf.String(), `"msgid":"`+env.ID()+`"`)
	assert.Contains(t, buf.String(), `"module":"orders"`)
}

func TestNotify_RecordsSuccessMetrics(t *testing.T) {
	b, _ := capture(t, messaging.DefaultChannel)
	n := NewNotifier(b, "", WithLogger(logging.Discard()))

	published := metrics.EnvelopesPublished.WithLabelValues("event", metrics.StatusSuccess)
	encoded := metrics.EnvelopesEncoded.WithLabelValues("event")
	beforePublished := testutil.ToFloat64(published)
	beforeEncoded := testutil.ToFloat64(encoded)
	beforeSamples := publishSamples(t)

	_, err := n.SendEvent(context.Background(), "orders", "api", "order_created", envelope.Params{}, nil)
	require.NoError(t, err)

	assert.Equal(t, beforePublished+1, testutil.ToFloat64(published))
	assert.Equal(t, beforeEncoded+1, testutil.ToFloat64(encoded))
	assert.Equal(t, beforeSamples+1, publishSamples(t))
}

func TestSendCommand(t *testing.T) {
	b, got := capture(t, "bridge")
	gen := idgen.New(rand.NewPCG(7, 11))
	want := idgen.New(rand.NewPCG(7, 11)).NewID()

	n := NewNotifier(b, "bridge", WithLogger(logging.Discard()), WithIDGenerator(gen))

	id, err := n.SendCommand(context.Background(), "orders", "api", "place_order",
		envelope.Args("sku-1", 3), map[string]any{"timeout": 30})
	require.NoError(t, err)
	assert.Equal(t, want, id)

	require.Len(t, *got, 1)
	fields := decodeWire(t, (*got)[0].Data)
	assert.Equal(t, float64(0), fields["msgtype"])
	assert.Equal(t, want, fields["msgid"])
	assert.Equal(t, "place_order", fields["command"])
	assert.Equal(t, []any{[]any{"sku-1", float64(3)}, nil}, fields["data"])
	assert.Equal(t, map[string]any{"timeout": float64(30)}, fields["options"])
}

func TestNotify_Signed(t *testing.T) {
	b, got := capture(t, "bridge")
	signer := signing.NewSigner("shared-key")
	n := NewNotifier(b, "bridge", WithLogger(logging.Discard()), WithSigner(signer))

	id, err := n.SendEvent(context.Background(), "orders", "api", "order_created", envelope.Args(1), nil)
	require.NoError(t, err)
	require.Len(t, *got, 1)

	msg := (*got)[0]
	signature := msg.Metadata[messaging.HeaderSignature]
	assert.True(t, signer.Verify(id, msg.Data, signature))
	assert.False(t, signing.NewSigner("wrong-key").Verify(id, msg.Data, signature))
}
