package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibridge-systems/ibridge/common/envelope"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
)

func TestProxy_Call(t *testing.T) {
	tests := []struct {
		name     string
		proxy    func(*Notifier) *Proxy
		wantType string
		nameKey  string
	}{
		{"commands", func(n *Notifier) *Proxy { return n.Commands("mailer", "smtp") }, "0", "command"},
		{"events", func(n *Notifier) *Proxy { return n.Events("mailer", "smtp") }, "1", "event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, got := capture(t, "bridge")
			p := tt.proxy(NewNotifier(b, "bridge", WithLogger(logging.Discard())))
			assert.Equal(t, "mailer@smtp", p.ModuleID())

			first, err := p.Call(context.Background(), "send", envelope.Args("a@example.com"), nil)
			require.NoError(t, err)
			second, err := p.Call(context.Background(), "send", envelope.Args("b@example.com"), nil)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)

			require.Len(t, *got, 2)
			for i, id := range []string{first, second} {
				msg := (*got)[i]
				assert.Equal(t, tt.wantType, msg.Metadata[messaging.HeaderMessageType])
				assert.Equal(t, id, msg.Metadata[messaging.HeaderMessageID])

				fields := decodeWire(t, msg.Data)
				assert.Equal(t, "send", fields[tt.nameKey])
				assert.Equal(t, "mailer", fields["module"])
				assert.Equal(t, "smtp", fields["submodule"])
			}
		})
	}
}
