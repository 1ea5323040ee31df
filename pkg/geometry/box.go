package geometry

import (
	"math"
)

// Box is a bounding box in unit-relative coordinates: x, y, w, h are all
// fractions of the image width/height, so boxes survive resolution changes.
// A valid box satisfies 0 <= X,Y, X+W <= 1, Y+H <= 1 and W,H > 0.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// NewBoxFromPixels builds a unit-relative box from absolute pixel
// coordinates on an image of the given dimensions.
func NewBoxFromPixels(r RectInt, imgW, imgH int) Box {
	if imgW <= 0 || imgH <= 0 {
		return Box{}
	}
	return Box{
		X: float64(r.X) / float64(imgW),
		Y: float64(r.Y) / float64(imgH),
		W: float64(r.Width) / float64(imgW),
		H: float64(r.Height) / float64(imgH),
	}
}

// Valid reports whether the box satisfies the unit-range invariant.
func (b Box) Valid() bool {
	const eps = 1e-9
	return b.W > 0 && b.H > 0 &&
		b.X >= -eps && b.Y >= -eps &&
		b.X+b.W <= 1+eps && b.Y+b.H <= 1+eps
}

// Clamp forces the box into the unit range, preserving as much of its
// extent as possible. Width/height collapse to a small minimum rather
// than zero so a clamped box stays valid.
func (b Box) Clamp() Box {
	const minSide = 1e-4
	b.X = math.Max(0, math.Min(b.X, 1-minSide))
	b.Y = math.Max(0, math.Min(b.Y, 1-minSide))
	b.W = math.Max(minSide, math.Min(b.W, 1-b.X))
	b.H = math.Max(minSide, math.Min(b.H, 1-b.Y))
	return b
}

// Area returns the relative area (fraction of the total image area).
func (b Box) Area() float64 {
	return b.W * b.H
}

// Pixels projects the box to absolute pixel coordinates on an image of
// the given dimensions. The result is guaranteed non-empty and in bounds.
func (b Box) Pixels(imgW, imgH int) RectInt {
	x := int(b.X * float64(imgW))
	y := int(b.Y * float64(imgH))
	if x > imgW-1 {
		x = imgW - 1
	}
	if y > imgH-1 {
		y = imgH - 1
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	w := int(b.W * float64(imgW))
	h := int(b.H * float64(imgH))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if x+w > imgW {
		w = imgW - x
	}
	if y+h > imgH {
		h = imgH - y
	}
	return RectInt{X: x, Y: y, Width: w, Height: h}
}

// IoU returns the intersection-over-union overlap with another box.
// Because both boxes share the same unit coordinate space, the ratio is
// identical to the pixel-space IoU.
func (b Box) IoU(other Box) float64 {
	inter := b.intersectionArea(other)
	if inter <= 0 {
		return 0
	}
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Containment returns the fraction of the smaller box covered by the
// intersection. 1.0 means one box fully contains the other.
func (b Box) Containment(other Box) float64 {
	inter := b.intersectionArea(other)
	if inter <= 0 {
		return 0
	}
	smaller := math.Min(b.Area(), other.Area())
	if smaller <= 0 {
		return 0
	}
	return inter / smaller
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	x0 := math.Min(b.X, other.X)
	y0 := math.Min(b.Y, other.Y)
	x1 := math.Max(b.X+b.W, other.X+other.W)
	y1 := math.Max(b.Y+b.H, other.Y+other.H)
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (b Box) intersectionArea(other Box) float64 {
	x0 := math.Max(b.X, other.X)
	y0 := math.Max(b.Y, other.Y)
	x1 := math.Min(b.X+b.W, other.X+other.W)
	y1 := math.Min(b.Y+b.H, other.Y+other.H)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	return (x1 - x0) * (y1 - y0)
}
