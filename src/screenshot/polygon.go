package screenshot

import "math"

// Point is a pixel coordinate.
type Point struct {
	X int
	Y int
}

var maskFill = [4]byte{255, 255, 255, 255}

// MaskPolygon returns a copy of b where every pixel whose center lies outside
// polygon is painted white. The polygon is in buffer-local coordinates; fewer
// than three points leaves the image unchanged.
func MaskPolygon(b *PixelBuffer, polygon []Point) *PixelBuffer {
	out := &PixelBuffer{width: b.width, height: b.height, pix: make([]byte, len(b.pix))}
	copy(out.pix, b.pix)
	if len(polygon) < 3 {
		return out
	}

	stride := out.Stride()
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			if insidePolygon(float64(x)+0.5, float64(y)+0.5, polygon) {
				continue
			}
			off := y*stride + x*4
			copy(out.pix[off:off+4], maskFill[:])
		}
	}
	return out
}

// insidePolygon is an even-odd ray cast; points on an edge count as inside.
func insidePolygon(px, py float64, polygon []Point) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := range polygon {
		ax, ay := float64(polygon[i].X), float64(polygon[i].Y)
		bx, by := float64(polygon[j].X), float64(polygon[j].Y)
		j = i

		if onSegment(px, py, ax, ay, bx, by) {
			return true
		}
		if (ay > py) != (by > py) && px < (bx-ax)*(py-ay)/(by-ay)+ax {
			inside = !inside
		}
	}
	return inside
}

func onSegment(px, py, x1, y1, x2, y2 float64) bool {
	const tolerance = 0.5
	cross := (px-x1)*(y2-y1) - (py-y1)*(x2-x1)
	if math.Abs(cross) > tolerance {
		return false
	}
	return px >= math.Min(x1, x2)-tolerance && px <= math.Max(x1, x2)+tolerance &&
		py >= math.Min(y1, y2)-tolerance && py <= math.Max(y1, y2)+tolerance
}
