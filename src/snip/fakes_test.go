package snip

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"screen-snip/src/screenshot"
	"screen-snip/src/session"
)

type fakeWindows struct {
	mu      sync.Mutex
	exists  map[string]bool
	visible map[string]bool
	focused string
	fail    map[string]error // key: "op:label"
	calls   []string
}

func newFakeWindows(labels ...string) *fakeWindows {
	w := &fakeWindows{exists: map[string]bool{}, visible: map[string]bool{}, fail: map[string]error{}}
	for _, l := range labels {
		w.exists[l] = true
		w.visible[l] = true
	}
	return w
}

func (w *fakeWindows) failOn(op, label string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail[op+":"+label] = err
}

func (w *fakeWindows) record(op, label string) error {
	w.calls = append(w.calls, op+":"+label)
	if err := w.fail[op+":"+label]; err != nil {
		return err
	}
	if !w.exists[label] {
		return fmt.Errorf("window %q not found", label)
	}
	return nil
}

func (w *fakeWindows) Show(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("show", label); err != nil {
		return err
	}
	w.visible[label] = true
	return nil
}

func (w *fakeWindows) Hide(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("hide", label); err != nil {
		return err
	}
	w.visible[label] = false
	return nil
}

func (w *fakeWindows) Focus(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("focus", label); err != nil {
		return err
	}
	w.focused = label
	return nil
}

func (w *fakeWindows) Close(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("close", label); err != nil {
		return err
	}
	delete(w.exists, label)
	delete(w.visible, label)
	return nil
}

func (w *fakeWindows) CreateOverlay(label, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "create:"+label)
	if err := w.fail["create:"+label]; err != nil {
		return err
	}
	w.exists[label] = true
	return nil
}

func (w *fakeWindows) Handle(label string) (uintptr, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return 0, w.exists[label]
}

func (w *fakeWindows) isVisible(label string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible[label]
}

func (w *fakeWindows) has(label string) bool {
	_, ok := w.Handle(label)
	return ok
}

type emitted struct {
	target, event, payload string
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (e *fakeEmitter) Emit(target, event, payload string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, emitted{target, event, payload})
	return nil
}

func (e *fakeEmitter) last() (emitted, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		return emitted{}, false
	}
	return e.events[len(e.events)-1], true
}

type recordingDiagnostics struct {
	mu   sync.Mutex
	errs []error
}

func (d *recordingDiagnostics) Report(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *recordingDiagnostics) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errs)
}

// patterned builds a buffer whose pixel (x,y) encodes its own coordinates.
func patterned(t *testing.T, w, h int) *screenshot.PixelBuffer {
	t.Helper()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			pix[off] = byte(x)
			pix[off+1] = byte(x >> 8)
			pix[off+2] = byte(y)
			pix[off+3] = 255
		}
	}
	buf, err := screenshot.NewPixelBuffer(w, h, pix)
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	return buf
}

type harness struct {
	ctrl    *Controller
	windows *fakeWindows
	emitter *fakeEmitter
	diag    *recordingDiagnostics
	session *session.Session
}

func newHarness(t *testing.T, capture func() (*screenshot.PixelBuffer, error)) *harness {
	t.Helper()
	h := &harness{
		windows: newFakeWindows(DefaultHostWindow),
		emitter: &fakeEmitter{},
		diag:    &recordingDiagnostics{},
		session: session.New(),
	}
	ctrl, err := New(Options{
		Windows:     h.windows,
		Events:      h.emitter,
		Capturer:    screenshot.CaptureFunc(capture),
		Session:     h.session,
		Diagnostics: h.diag,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func fixedCapture(buf *screenshot.PixelBuffer) func() (*screenshot.PixelBuffer, error) {
	return func() (*screenshot.PixelBuffer, error) { return buf, nil }
}

var errBoom = errors.New("boom")
