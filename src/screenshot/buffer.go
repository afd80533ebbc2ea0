package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// ErrRegionOutOfBounds is returned when a crop rectangle does not lie inside the buffer.
var ErrRegionOutOfBounds = errors.New("region out of bounds")

// PixelBuffer holds an immutable RGBA8 capture, row-major, 4 bytes per pixel.
type PixelBuffer struct {
	width  int
	height int
	pix    []byte
}

// NewPixelBuffer copies pix into a new buffer. len(pix) must equal width*height*4.
func NewPixelBuffer(width, height int, pix []byte) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer dimensions: width=%d, height=%d", width, height)
	}
	if want := width * height * 4; len(pix) != want {
		return nil, fmt.Errorf("pixel data length %d does not match %dx%d (want %d)", len(pix), width, height, want)
	}
	owned := make([]byte, len(pix))
	copy(owned, pix)
	return &PixelBuffer{width: width, height: height, pix: owned}, nil
}

// FromImage normalizes any image into a straight-alpha RGBA8 buffer anchored at (0,0).
func FromImage(img image.Image) (*PixelBuffer, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: width=%d, height=%d", w, h)
	}

	pix := make([]byte, w*h*4)
	switch src := img.(type) {
	case *image.RGBA:
		// Captures arrive as opaque *image.RGBA, possibly with a stride wider
		// than the visible rectangle. Premultiplied and straight alpha only
		// agree when alpha is 255.
		if src.Opaque() {
			copyRows(pix, src.Pix, src.PixOffset(b.Min.X, b.Min.Y), src.Stride, w, h)
			break
		}
		convert(pix, img, w, h)
	case *image.NRGBA:
		copyRows(pix, src.Pix, src.PixOffset(b.Min.X, b.Min.Y), src.Stride, w, h)
	default:
		convert(pix, img, w, h)
	}
	return &PixelBuffer{width: w, height: h, pix: pix}, nil
}

func convert(pix []byte, img image.Image, w, h int) {
	dst := &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(dst, dst.Rect, img, img.Bounds().Min, draw.Src)
}

func copyRows(dst, src []byte, start, stride, w, h int) {
	for y := 0; y < h; y++ {
		off := start + y*stride
		copy(dst[y*w*4:(y+1)*w*4], src[off:off+w*4])
	}
}

func (b *PixelBuffer) Width() int  { return b.width }
func (b *PixelBuffer) Height() int { return b.height }

// Stride is the number of bytes per row.
func (b *PixelBuffer) Stride() int { return b.width * 4 }

// Bounds returns the buffer rectangle, always anchored at the origin.
func (b *PixelBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// Pix returns the underlying pixel data. Callers must not modify it.
func (b *PixelBuffer) Pix() []byte { return b.pix }

// Image returns a straight-alpha view sharing the buffer's memory. It is
// read-only by contract.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{Pix: b.pix, Stride: b.Stride(), Rect: b.Bounds()}
}

// Crop copies the rectangle r into a new buffer. Source offsets use the
// original row stride, not the cropped width.
func (b *PixelBuffer) Crop(r image.Rectangle) (*PixelBuffer, error) {
	if r.Empty() || !r.In(b.Bounds()) {
		return nil, fmt.Errorf("%w: %v not within %dx%d", ErrRegionOutOfBounds, r, b.width, b.height)
	}
	w, h := r.Dx(), r.Dy()
	out := make([]byte, 0, w*h*4)
	stride := b.Stride()
	for row := r.Min.Y; row < r.Max.Y; row++ {
		start := row*stride + r.Min.X*4
		out = append(out, b.pix[start:start+w*4]...)
	}
	return &PixelBuffer{width: w, height: h, pix: out}, nil
}
