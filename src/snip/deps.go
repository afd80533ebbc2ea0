package snip

import "log"

// WindowManager is the window system the controller drives. Labels identify
// windows; Handle reports whether a window exists and its native handle (0
// when the platform has none).
type WindowManager interface {
	Show(label string) error
	Hide(label string) error
	Focus(label string) error
	Close(label string) error
	CreateOverlay(label, url string) error
	Handle(label string) (uintptr, bool)
}

// Emitter delivers completion signals to a display target.
type Emitter interface {
	Emit(target, event, payload string) error
}

// Diagnostics receives failures of best-effort operations. They never
// propagate to the caller of the controller.
type Diagnostics interface {
	Report(err error)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(err error)

func (f DiagnosticsFunc) Report(err error) { f(err) }

// LogDiagnostics writes best-effort failures to the standard logger.
type LogDiagnostics struct{}

func (LogDiagnostics) Report(err error) {
	log.Printf("[snip] best-effort operation failed: %v", err)
}
