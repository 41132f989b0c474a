package envelope

import (
	"bytes"
	"encoding/json"
)

// Params is the positional and keyword argument pair carried in the data key.
// Values are opaque: anything encoding/json can serialize.
// It encodes as a two-element JSON array [args, kwargs]; a nil half encodes as null.
type Params struct {
	Args   []any
	Kwargs map[string]any
}

// NewParams pairs positional and keyword arguments.
func NewParams(args []any, kwargs map[string]any) Params {
	return Params{Args: args, Kwargs: kwargs}
}

// Args builds Params holding only positional arguments.
func Args(args ...any) Params {
	return Params{Args: args}
}

// IsZero reports whether both halves are unset.
func (p Params) IsZero() bool {
	return p.Args == nil && p.Kwargs == nil
}

// MarshalJSON implements json.Marshaler.
func (p Params) MarshalJSON() ([]byte, error) {
	pair := [2]any{nil, nil}
	if p.Args != nil {
		pair[0] = p.Args
	}
	if p.Kwargs != nil {
		pair[1] = p.Kwargs
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(pair); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
