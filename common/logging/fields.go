package logging

import "log/slog"

// Common field names for consistent logging across the bridge.
const (
	FieldService     = "service"
	FieldModule      = "module"
	FieldSubmodule   = "submodule"
	FieldMessageID   = "msgid"
	FieldMessageType = "msgtype"
	FieldName        = "name"
	FieldChannel     = "channel"
	FieldTransport   = "transport"
	FieldBytes       = "bytes"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Module returns a slog attribute for the envelope module.
func Module(module string) slog.Attr {
	return slog.String(FieldModule, module)
}

// Submodule returns a slog attribute for the envelope submodule.
func Submodule(submodule string) slog.Attr {
	return slog.String(FieldSubmodule, submodule)
}

// MessageID returns a slog attribute for the envelope ID.
func MessageID(id string) slog.Attr {
	return slog.String(FieldMessageID, id)
}

// MessageType returns a slog attribute for the envelope kind name.
func MessageType(kind string) slog.Attr {
	return slog.String(FieldMessageType, kind)
}

// Name returns a slog attribute for the command or event name.
func Name(name string) slog.Attr {
	return slog.String(FieldName, name)
}

// Channel returns a slog attribute for the transport channel.
func Channel(channel string) slog.Attr {
	return slog.String(FieldChannel, channel)
}

// Transport returns a slog attribute for the transport type.
func Transport(kind string) slog.Attr {
	return slog.String(FieldTransport, kind)
}

// Bytes returns a slog attribute for a payload size.
func Bytes(n int) slog.Attr {
	return slog.Int(FieldBytes, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
