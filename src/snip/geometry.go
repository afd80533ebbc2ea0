package snip

import (
	"fmt"
	"image"
	"math"

	"screen-snip/src/screenshot"
)

// Selection is a rectangle drawn on the overlay, in viewport coordinates.
type Selection struct {
	X              float32 `json:"x"`
	Y              float32 `json:"y"`
	Width          float32 `json:"width"`
	Height         float32 `json:"height"`
	ViewportWidth  float32 `json:"viewportWidth"`
	ViewportHeight float32 `json:"viewportHeight"`
	// Polygon optionally restricts the crop to a lasso outline, in viewport coordinates.
	Polygon []Vertex `json:"polygon,omitempty"`
}

// Vertex is a polygon point in viewport coordinates.
type Vertex struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Validate rejects selections that cannot be projected.
func (s Selection) Validate() error {
	if !finite(s.X, s.Y, s.Width, s.Height, s.ViewportWidth, s.ViewportHeight) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidSelection)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: width=%g height=%g", ErrInvalidSelection, s.Width, s.Height)
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("%w: viewport %gx%g", ErrInvalidSelection, s.ViewportWidth, s.ViewportHeight)
	}
	return nil
}

// Project maps the selection onto a width x height pixel buffer. Scale factors
// are independent per axis; values are clamped into the buffer and truncated.
func (s Selection) Project(width, height int) (image.Rectangle, error) {
	if err := s.Validate(); err != nil {
		return image.Rectangle{}, err
	}

	w, h := float32(width), float32(height)
	scaleX := w / s.ViewportWidth
	scaleY := h / s.ViewportHeight

	sx := uint32(clamp(s.X*scaleX, 0, w))
	sy := uint32(clamp(s.Y*scaleY, 0, h))
	sw := uint32(clamp(s.Width*scaleX, 0, w-float32(sx)))
	sh := uint32(clamp(s.Height*scaleY, 0, h-float32(sy)))

	if sw == 0 || sh == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d pixels at (%d,%d)", ErrSelectionTooSmall, sw, sh, sx, sy)
	}
	return image.Rect(int(sx), int(sy), int(sx+sw), int(sy+sh)), nil
}

// projectPolygon maps lasso vertices into crop-local pixel coordinates.
func (s Selection) projectPolygon(width, height int, crop image.Rectangle) []screenshot.Point {
	if len(s.Polygon) < 3 {
		return nil
	}
	scaleX := float32(width) / s.ViewportWidth
	scaleY := float32(height) / s.ViewportHeight

	out := make([]screenshot.Point, 0, len(s.Polygon))
	for _, v := range s.Polygon {
		if !finite(v.X, v.Y) {
			continue
		}
		px := int(clamp(v.X*scaleX, 0, float32(width)))
		py := int(clamp(v.Y*scaleY, 0, float32(height)))
		out = append(out, screenshot.Point{X: px - crop.Min.X, Y: py - crop.Min.Y})
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(vs ...float32) bool {
	for _, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
