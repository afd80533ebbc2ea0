// Package chrome applies optional platform window styling (dark title bar,
// translucent backdrop). It has no effect on snip correctness.
package chrome

// Styler styles a native window handle.
type Styler interface {
	Apply(handle uintptr) error
}

// Noop leaves windows untouched.
type Noop struct{}

func (Noop) Apply(uintptr) error { return nil }

// New returns the styler for the current platform.
func New(enabled bool) Styler {
	if !enabled {
		return Noop{}
	}
	return newPlatformStyler()
}
