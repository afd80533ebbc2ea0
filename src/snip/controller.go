// Package snip implements the region snip workflow: capture the primary
// display, hand it to an overlay, crop the user's selection and deliver it.
package snip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"screen-snip/src/chrome"
	"screen-snip/src/encoder"
	"screen-snip/src/events"
	"screen-snip/src/logutil"
	"screen-snip/src/screenshot"
	"screen-snip/src/session"
)

const (
	DefaultHostWindow    = "main"
	DefaultOverlayWindow = "snip-overlay"
	DefaultOverlayURL    = "overlay.html"
)

// State is the workflow position of the controller.
type State int32

const (
	Idle State = iota
	Capturing
	AwaitingSelection
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case AwaitingSelection:
		return "awaiting-selection"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options wires the controller to its collaborators. Windows, Events and
// Capturer are required.
type Options struct {
	Windows     WindowManager
	Events      Emitter
	Capturer    screenshot.Capturer
	Encoder     *encoder.Encoder
	Session     *session.Session
	Diagnostics Diagnostics
	Chrome      chrome.Styler

	HostWindow    string
	OverlayWindow string
	OverlayURL    string
	// DefaultMode is reported to the overlay ("rectangle" or "lasso").
	DefaultMode string
}

// Status is a diagnostic view of the controller.
type Status struct {
	State       string     `json:"state"`
	SessionID   string     `json:"sessionId,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	CapturedAt  *time.Time `json:"capturedAt,omitempty"`
	DefaultMode string     `json:"defaultMode,omitempty"`
	OverlayURL  string     `json:"overlayUrl"`
}

// Controller runs the snip workflow. All methods are safe for concurrent use;
// the session slot is the only shared state.
type Controller struct {
	windows  WindowManager
	events   Emitter
	capturer screenshot.Capturer
	encoder  *encoder.Encoder
	session  *session.Session
	diag     Diagnostics
	chrome   chrome.Styler

	host        string
	overlay     string
	overlayURL  string
	defaultMode string

	state atomic.Int32
}

// New validates opts and fills defaults.
func New(opts Options) (*Controller, error) {
	if opts.Windows == nil {
		return nil, errors.New("snip: Windows is required")
	}
	if opts.Events == nil {
		return nil, errors.New("snip: Events is required")
	}
	if opts.Capturer == nil {
		return nil, errors.New("snip: Capturer is required")
	}

	c := &Controller{
		windows:     opts.Windows,
		events:      opts.Events,
		capturer:    opts.Capturer,
		encoder:     opts.Encoder,
		session:     opts.Session,
		diag:        opts.Diagnostics,
		chrome:      opts.Chrome,
		host:        opts.HostWindow,
		overlay:     opts.OverlayWindow,
		overlayURL:  opts.OverlayURL,
		defaultMode: opts.DefaultMode,
	}
	if c.encoder == nil {
		c.encoder = &encoder.Encoder{}
	}
	if c.session == nil {
		c.session = session.New()
	}
	if c.diag == nil {
		c.diag = LogDiagnostics{}
	}
	if c.chrome == nil {
		c.chrome = chrome.Noop{}
	}
	if c.host == "" {
		c.host = DefaultHostWindow
	}
	if c.overlay == "" {
		c.overlay = DefaultOverlayWindow
	}
	if c.overlayURL == "" {
		c.overlayURL = DefaultOverlayURL
	}
	return c, nil
}

// State returns the current workflow state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Start captures the primary display and opens the selection overlay.
// A failed start leaves no session, no overlay and a visible host window.
func (c *Controller) Start(ctx context.Context) error {
	log.Printf("[snip] start invoked")
	c.state.Store(int32(Capturing))
	defer c.settle()

	// A visible host only risks appearing in the capture.
	c.bestEffort(windowErr("hide", c.host, c.windows.Hide(c.host)))

	if err := ctx.Err(); err != nil {
		c.abandon()
		return err
	}

	buf, err := c.capturer.CapturePrimary()
	if err == nil && buf == nil {
		err = errors.New("capturer returned no pixels")
	}
	if err != nil {
		log.Printf("[snip] capture error: %v", err)
		c.abandon()
		if !errors.Is(err, ErrCapture) {
			err = fmt.Errorf("%w: %w", ErrCapture, err)
		}
		return err
	}

	id := c.session.Put(buf)
	log.Printf("[snip] session %s holds %dx%d capture", id, buf.Width(), buf.Height())

	if err := c.openOverlay(); err != nil {
		log.Printf("[snip] overlay error: %v", err)
		c.rollback(id)
		return err
	}
	return nil
}

func (c *Controller) openOverlay() error {
	if _, ok := c.windows.Handle(c.overlay); !ok {
		log.Printf("[snip] creating overlay window %q -> %s", c.overlay, c.overlayURL)
		if err := c.windows.CreateOverlay(c.overlay, c.overlayURL); err != nil {
			return windowErr("create", c.overlay, err)
		}
		if _, ok := c.windows.Handle(c.overlay); !ok {
			return windowErr("create", c.overlay, errors.New("overlay window missing after create"))
		}
	}
	if err := c.windows.Show(c.overlay); err != nil {
		return windowErr("show", c.overlay, err)
	}
	if err := c.windows.Focus(c.overlay); err != nil {
		return windowErr("focus", c.overlay, err)
	}
	return nil
}

// rollback undoes a start that failed after storing session id. A newer start
// that replaced the session owns the overlay and host, so they are left alone.
func (c *Controller) rollback(id string) {
	if !c.session.ClearIf(id) {
		log.Printf("[snip] session %s superseded before rollback; leaving newer snip intact", id)
		return
	}
	c.closeOverlay()
	c.restoreHost()
}

// abandon returns to idle after a start failed before storing its capture.
// The host is shown again, so an earlier snip cannot stay live behind it.
func (c *Controller) abandon() {
	if c.session.Clear() {
		log.Printf("[snip] dropped earlier session after failed start")
	}
	c.closeOverlay()
	c.restoreHost()
}

// Query encodes the live capture for the overlay. It does not consume the session.
func (c *Controller) Query() (encoder.Image, error) {
	snap, ok := c.session.Peek()
	if !ok {
		return encoder.Image{}, ErrNoActiveSnip
	}
	img, err := c.encoder.Encode(snap.Buffer)
	if err != nil {
		return encoder.Image{}, err
	}
	log.Printf("[snip] served session %s image (%d bytes)", snap.ID, len(img.Bytes))
	return img, nil
}

// Finish consumes the session, crops the selection and emits it to the host
// window. The overlay is closed whatever the outcome.
func (c *Controller) Finish(sel Selection) error {
	log.Printf("[snip] finish received selection x=%g y=%g w=%g h=%g viewport=%gx%g",
		sel.X, sel.Y, sel.Width, sel.Height, sel.ViewportWidth, sel.ViewportHeight)
	defer c.settle()

	snap, ok := c.session.Take()
	if !ok {
		c.closeOverlay()
		return ErrNoActiveSnip
	}

	img, err := c.crop(snap.Buffer, sel)
	if err == nil {
		if emitErr := c.events.Emit(c.host, events.SnipComplete, img.DataURL); emitErr != nil {
			err = fmt.Errorf("emit %s: %w", events.SnipComplete, emitErr)
		}
	}

	c.closeOverlay()
	c.restoreHost()

	if err != nil {
		log.Printf("[snip] finish of session %s failed: %v", snap.ID, err)
		return err
	}
	log.Printf("[snip] session %s finished: %dx%d", snap.ID, img.Width, img.Height)
	return nil
}

func (c *Controller) crop(buf *screenshot.PixelBuffer, sel Selection) (encoder.Image, error) {
	rect, err := sel.Project(buf.Width(), buf.Height())
	if err != nil {
		return encoder.Image{}, err
	}

	poly := sel.projectPolygon(buf.Width(), buf.Height(), rect)
	if len(poly) < 3 {
		return c.encoder.EncodeRegion(buf, rect)
	}

	cropped, err := buf.Crop(rect)
	if err != nil {
		return encoder.Image{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return c.encoder.Encode(screenshot.MaskPolygon(cropped, poly))
}

// Cancel drops any live session and returns control to the host window.
// It succeeds when no snip is active.
func (c *Controller) Cancel() error {
	log.Printf("[snip] cancel invoked")
	defer c.settle()

	if !c.session.Clear() {
		log.Printf("[snip] cancel with no active session")
	}
	c.closeOverlay()

	err := c.events.Emit(c.host, events.SnipCancel, "")
	c.restoreHost()
	if err != nil {
		return fmt.Errorf("emit %s: %w", events.SnipCancel, err)
	}
	return nil
}

// CaptureFullscreen returns the primary display without touching the session.
func (c *Controller) CaptureFullscreen() (encoder.Image, error) {
	buf, err := c.capturer.CapturePrimary()
	if err != nil {
		if !errors.Is(err, ErrCapture) {
			err = fmt.Errorf("%w: %w", ErrCapture, err)
		}
		return encoder.Image{}, err
	}
	return c.encoder.Encode(buf)
}

// Log records a message from the display layer.
func (c *Controller) Log(message string) {
	log.Printf("[overlay] %s", logutil.Truncate(message, 500))
}

// Status reports the workflow state and the live session, if any.
func (c *Controller) Status() Status {
	st := c.session.Status()
	out := Status{
		State:       c.State().String(),
		SessionID:   st.ID,
		Width:       st.Width,
		Height:      st.Height,
		DefaultMode: c.defaultMode,
		OverlayURL:  c.overlayURL,
	}
	if st.Active {
		at := st.CapturedAt
		out.CapturedAt = &at
	}
	return out
}

// ApplyChrome styles the host window. Failures are reported, not returned.
func (c *Controller) ApplyChrome() {
	handle, ok := c.windows.Handle(c.host)
	if !ok || handle == 0 {
		return
	}
	c.bestEffort(windowErr("style", c.host, c.chrome.Apply(handle)))
}

func (c *Controller) closeOverlay() {
	if _, ok := c.windows.Handle(c.overlay); !ok {
		return
	}
	c.bestEffort(windowErr("close", c.overlay, c.windows.Close(c.overlay)))
}

func (c *Controller) restoreHost() {
	c.bestEffort(windowErr("show", c.host, c.windows.Show(c.host)))
	c.bestEffort(windowErr("focus", c.host, c.windows.Focus(c.host)))
}

func (c *Controller) bestEffort(err error) {
	if err != nil {
		c.diag.Report(err)
	}
}

// settle derives the resting state from the session slot.
func (c *Controller) settle() {
	if c.session.Status().Active {
		c.state.Store(int32(AwaitingSelection))
		return
	}
	c.state.Store(int32(Idle))
}
