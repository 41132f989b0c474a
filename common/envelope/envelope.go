// Package envelope builds the command and event messages exchanged between
// bridge modules and encodes them into the transport-safe wire string.
//
// A caller creates a fresh envelope per message, addresses it, optionally sets
// parameters and options, then calls Encode:
//
//	env := envelope.NewEvent()
//	env.SetAddress("inventory", "sync", "stock_updated")
//	env.SetParameters(envelope.NewParams([]any{"sku123"}, map[string]any{"qty": 5}))
//	wire, err := env.Encode()
//
// The wire string is the standard base64 encoding of a JSON object with the keys
// msgtype, msgid, module, submodule, command (or event), data and options.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ibridge-systems/ibridge/common/idgen"
)

// Kind discriminates commands from events on the wire (the msgtype key).
type Kind int

// Wire values of the msgtype key. Receivers dispatch on them.
const (
	KindCommand Kind = 0 // asks a module to do something
	KindEvent   Kind = 1 // reports that something happened
)

// String returns the lowercase kind name, which is also the wire key of the name field.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IDGenerator produces message identifiers. *idgen.Generator implements it.
type IDGenerator interface {
	NewID() string
}

// Option configures an Envelope at construction.
type Option func(*Envelope)

// WithGenerator sets the identifier generator used by SetAddress.
func WithGenerator(g IDGenerator) Option {
	return func(e *Envelope) {
		if g != nil {
			e.ids = g
		}
	}
}

// Envelope is a command or event message prior to transport encoding.
// The kind is fixed at construction. An Envelope is not safe for concurrent mutation.
type Envelope struct {
	kind      Kind
	id        string
	module    string
	submodule string
	name      string
	addressed bool
	params    Params
	options   map[string]any
	ids       IDGenerator
}

// NewCommand creates an empty command envelope.
func NewCommand(opts ...Option) *Envelope {
	return newEnvelope(KindCommand, opts)
}

// NewEvent creates an empty event envelope.
func NewEvent(opts ...Option) *Envelope {
	return newEnvelope(KindEvent, opts)
}

func newEnvelope(kind Kind, opts []Option) *Envelope {
	e := &Envelope{
		kind: kind,
		ids:  idgen.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateCommand builds an addressed and parameterized command envelope in one call.
func CreateCommand(module, submodule, command string, params Params, opts ...Option) *Envelope {
	e := NewCommand(opts...)
	e.SetAddress(module, submodule, command)
	e.SetParameters(params)
	return e
}

// CreateEvent builds an addressed and parameterized event envelope in one call.
func CreateEvent(module, submodule, event string, params Params, opts ...Option) *Envelope {
	e := NewEvent(opts...)
	e.SetAddress(module, submodule, event)
	e.SetParameters(params)
	return e
}

// SetAddress assigns a fresh message ID together with the module, submodule
// and the command or event name. Calling it again replaces all four.
func (e *Envelope) SetAddress(module, submodule, name string) {
	e.id = e.ids.NewID()
	e.module = module
	e.submodule = submodule
	e.name = name
	e.addressed = true
}

// SetParameters stores p verbatim. The envelope shares p's slice and map with the caller.
func (e *Envelope) SetParameters(p Params) {
	e.params = p
}

// SetOptions replaces the options map. The map is stored without copying.
func (e *Envelope) SetOptions(options map[string]any) {
	e.options = options
}

// Kind reports whether the envelope is a command or an event. It never changes.
func (e *Envelope) Kind() Kind { return e.kind }

// ID returns the message ID assigned by the last SetAddress, or "" before addressing.
func (e *Envelope) ID() string { return e.id }

// Module returns the target module.
func (e *Envelope) Module() string { return e.module }

// Submodule returns the target submodule.
func (e *Envelope) Submodule() string { return e.submodule }

// Name returns the command or event name.
func (e *Envelope) Name() string { return e.name }

// Addressed reports whether SetAddress has run. Until then the ID, module,
// submodule and name encode as null.
func (e *Envelope) Addressed() bool { return e.addressed }

// Params returns the stored positional and keyword arguments.
func (e *Envelope) Params() Params { return e.params }

// Options returns the options map, nil when never set.
func (e *Envelope) Options() map[string]any { return e.options }

// ModuleID returns the "module@submodule" form used to key handlers on the bridge.
func (e *Envelope) ModuleID() string {
	return ModuleID(e.module, e.submodule)
}

// ModuleID joins a module and submodule as "module@submodule".
func ModuleID(module, submodule string) string {
	return module + "@" + submodule
}

// Fields returns the ordered wire structure without encoding it.
// Marshaling the result to JSON yields the payload that Encode base64-encodes.
func (e *Envelope) Fields() any {
	h := header{Type: e.kind}
	var name *string
	if e.addressed {
		h.ID = &e.id
		h.Module = &e.module
		h.Submodule = &e.submodule
		name = &e.name
	}

	if e.kind == KindEvent {
		return eventFields{header: h, Event: name, Data: e.params, Options: e.options}
	}
	return commandFields{header: h, Command: name, Data: e.params, Options: e.options}
}

// JSON returns the JSON text of the envelope before base64 encoding.
func (e *Envelope) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Fields()); err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", e.kind, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encode serializes the envelope to its wire string. It encodes whatever state
// exists: unset fields become JSON null. Use Validate to reject incomplete envelopes.
// An error is returned only when params or options hold values JSON cannot represent.
func (e *Envelope) Encode() (string, error) {
	payload, err := e.JSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

type header struct {
	Type      Kind    `json:"msgtype"`
	ID        *string `json:"msgid"`
	Module    *string `json:"module"`
	Submodule *string `json:"submodule"`
}

type commandFields struct {
	header
	Command *string        `json:"command"`
	Data    Params         `json:"data"`
	Options map[string]any `json:"options"`
}

type eventFields struct {
	header
	Event   *string        `json:"event"`
	Data    Params         `json:"data"`
	Options map[string]any `json:"options"`
}
