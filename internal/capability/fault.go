package capability

import (
	"errors"
	"fmt"
)

// Fault reports that a collaborator could not produce a reading or
// perform an actuation. It is fatal to the session, unlike a timeout.
type Fault struct {
	Capability string
	Err        error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("capability fault: %s: %v", f.Capability, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault wraps err as a fault of the named capability. A nil err
// yields nil, and an existing fault is returned unchanged.
func NewFault(capability string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return &Fault{Capability: capability, Err: err}
}

// IsFault reports whether err carries a capability fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
