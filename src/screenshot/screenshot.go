package screenshot

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/kbinani/screenshot"
)

// ErrCapture marks every failure to acquire pixels from the display.
var ErrCapture = errors.New("capture failed")

// Capturer acquires a frame of the primary display.
type Capturer interface {
	CapturePrimary() (*PixelBuffer, error)
}

// CaptureFunc adapts a plain function to Capturer.
type CaptureFunc func() (*PixelBuffer, error)

func (f CaptureFunc) CapturePrimary() (*PixelBuffer, error) { return f() }

// Display captures through the operating system's screen API.
type Display struct{}

// CapturePrimary captures display 0 and normalizes it to RGBA8.
func (Display) CapturePrimary() (*PixelBuffer, error) {
	return CapturePrimary()
}

// CapturePrimary captures the primary display (display 0).
func CapturePrimary() (*PixelBuffer, error) {
	bounds, err := GetDisplayBounds()
	if err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	buf, err := FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return buf, nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: no active displays found", ErrCapture)
	}
	bounds := screenshot.GetDisplayBounds(0)
	if bounds.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: primary display reports empty bounds", ErrCapture)
	}
	return bounds, nil
}

// LogDisplays logs the bounds of every active display. Only display 0 is captured.
func LogDisplays() {
	n := screenshot.NumActiveDisplays()
	log.Printf("MONITOR: %d active displays", n)
	for i := 0; i < n; i++ {
		log.Printf("MONITOR: display %d bounds %v", i, screenshot.GetDisplayBounds(i))
	}
}
