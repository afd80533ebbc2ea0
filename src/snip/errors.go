package snip

import (
	"errors"
	"fmt"

	"screen-snip/src/encoder"
	"screen-snip/src/screenshot"
)

// Error kinds surfaced by the controller. Match with errors.Is.
var (
	ErrCapture           = screenshot.ErrCapture
	ErrEncode            = encoder.ErrEncode
	ErrNoActiveSnip      = errors.New("no active snip")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrSelectionTooSmall = errors.New("selection too small")
	ErrWindowOp          = errors.New("window operation failed")
)

// WindowOpError records a failed window-manager call.
type WindowOpError struct {
	Op    string
	Label string
	Err   error
}

func (e *WindowOpError) Error() string {
	return fmt.Sprintf("window %s %q: %v", e.Op, e.Label, e.Err)
}

func (e *WindowOpError) Unwrap() []error { return []error{ErrWindowOp, e.Err} }

func windowErr(op, label string, err error) error {
	if err == nil {
		return nil
	}
	return &WindowOpError{Op: op, Label: label, Err: err}
}
