package envelope

import (
	"errors"
	"fmt"
)

// ErrIncompleteEnvelope is returned by Validate when a required field is unset.
var ErrIncompleteEnvelope = errors.New("incomplete envelope")

// Validate checks that the envelope carries everything a receiver needs to
// dispatch it: an identifier, a module and the command or event name.
func (e *Envelope) Validate() error {
	if !e.addressed || e.id == "" {
		return fmt.Errorf("%w: %s has no address", ErrIncompleteEnvelope, e.kind)
	}
	if e.module == "" {
		return fmt.Errorf("%w: %s %s has no module", ErrIncompleteEnvelope, e.kind, e.id)
	}
	if e.name == "" {
		return fmt.Errorf("%w: %s %s has no %s name", ErrIncompleteEnvelope, e.kind, e.id, e.kind)
	}
	return nil
}
