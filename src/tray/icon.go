package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	selectionBlue = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	handleGray    = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// iconPNG draws the tray glyph: a dashed selection rectangle with a solid
// corner handle.
func iconPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	lo, hi := 4, iconSize-8
	for i := lo; i <= hi; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for w := 0; w < 2; w++ {
			img.SetNRGBA(i, lo+w, selectionBlue)
			img.SetNRGBA(i, hi-w, selectionBlue)
			img.SetNRGBA(lo+w, i, selectionBlue)
			img.SetNRGBA(hi-w, i, selectionBlue)
		}
	}
	for y := hi - 2; y < iconSize-2; y++ {
		for x := hi - 2; x < iconSize-2; x++ {
			img.SetNRGBA(x, y, handleGray)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapICO embeds a PNG in a single-image ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Reserved, Type, Count uint16
	}{0, 1, 1})
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Width, Height, Colors, Reserved byte
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{dim, dim, 0, 0, 1, 32, uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}

// Icon returns the tray icon in the format the platform tray expects.
func Icon() []byte {
	data, err := iconPNG()
	if err != nil {
		return nil
	}
	if runtime.GOOS == "windows" {
		return wrapICO(data, iconSize)
	}
	return data
}
