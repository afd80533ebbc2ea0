//go:build !windows

package chrome

func newPlatformStyler() Styler { return Noop{} }
