// Package encoder turns pixel buffers into PNG transport images.
package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"screen-snip/src/screenshot"
)

const (
	MIMEType = "image/png"
	// DataURLPrefix is consumed verbatim by the display layer.
	DataURLPrefix = "data:image/png;base64,"
)

// ErrEncode marks a failure to produce the PNG stream.
var ErrEncode = errors.New("encode failed")

// Image is a PNG-encoded capture ready for transport.
type Image struct {
	Bytes   []byte
	MIME    string
	DataURL string
	Width   int
	Height  int
}

// Encoder writes lossless RGBA PNGs. The zero value uses default compression.
type Encoder struct {
	png png.Encoder
}

// New returns an encoder using the given compression level.
func New(level png.CompressionLevel) *Encoder {
	return &Encoder{png: png.Encoder{CompressionLevel: level}}
}

// ParseCompression maps a config value to a png compression level.
func ParseCompression(s string) png.CompressionLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no":
		return png.NoCompression
	case "speed", "fast":
		return png.BestSpeed
	case "best":
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

// Encode encodes the whole buffer.
func (e *Encoder) Encode(buf *screenshot.PixelBuffer) (Image, error) {
	if buf == nil {
		return Image{}, fmt.Errorf("%w: nil buffer", ErrEncode)
	}
	return e.encode(buf)
}

// EncodeRegion encodes the sub-rectangle r of buf. r must lie inside buf.
func (e *Encoder) EncodeRegion(buf *screenshot.PixelBuffer, r image.Rectangle) (Image, error) {
	if buf == nil {
		return Image{}, fmt.Errorf("%w: nil buffer", ErrEncode)
	}
	if r == buf.Bounds() {
		return e.encode(buf)
	}
	cropped, err := buf.Crop(r)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return e.encode(cropped)
}

func (e *Encoder) encode(buf *screenshot.PixelBuffer) (Image, error) {
	var out bytes.Buffer
	if err := e.WriteTo(&out, buf); err != nil {
		return Image{}, err
	}
	data := out.Bytes()
	return Image{
		Bytes:   data,
		MIME:    MIMEType,
		DataURL: DataURL(data),
		Width:   buf.Width(),
		Height:  buf.Height(),
	}, nil
}

// WriteTo streams buf as PNG into w.
func (e *Encoder) WriteTo(w io.Writer, buf *screenshot.PixelBuffer) error {
	if err := e.png.Encode(w, buf.Image()); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

// DataURL wraps PNG bytes in the transport encoding.
func DataURL(pngData []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// ParseDataURL extracts the PNG bytes from a transport string.
func ParseDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, DataURLPrefix) {
		return nil, fmt.Errorf("not a PNG data URL (missing %q prefix)", DataURLPrefix)
	}
	data, err := base64.StdEncoding.DecodeString(s[len(DataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// Decode parses a transport string back into pixels.
func Decode(dataURL string) (*screenshot.PixelBuffer, error) {
	data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return screenshot.FromImage(img)
}
