package bridge

import (
	"context"

	"github.com/ibridge-systems/ibridge/common/envelope"
)

// Proxy sends envelopes of one kind to a fixed module and submodule.
// Each Call builds a fresh envelope with its own message ID.
type Proxy struct {
	notifier  *Notifier
	kind      envelope.Kind
	module    string
	submodule string
}

// Commands returns a Proxy that sends commands to module/submodule.
func (n *Notifier) Commands(module, submodule string) *Proxy {
	return &Proxy{notifier: n, kind: envelope.KindCommand, module: module, submodule: submodule}
}

// Events returns a Proxy that sends events to module/submodule.
func (n *Notifier) Events(module, submodule string) *Proxy {
	return &Proxy{notifier: n, kind: envelope.KindEvent, module: module, submodule: submodule}
}

// ModuleID returns the proxy target as "module@submodule".
func (p *Proxy) ModuleID() string {
	return envelope.ModuleID(p.module, p.submodule)
}

// Call publishes name with params and options and returns the message ID.
func (p *Proxy) Call(ctx context.Context, name string, params envelope.Params, options map[string]any) (string, error) {
	if p.kind == envelope.KindEvent {
		return p.notifier.SendEvent(ctx, p.module, p.submodule, name, params, options)
	}
	return p.notifier.SendCommand(ctx, p.module, p.submodule, name, params, options)
}
