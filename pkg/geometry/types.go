// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// RectInt represents a rectangle in absolute pixel coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the pixel area of the rectangle.
func (r RectInt) Area() int {
	return r.Width * r.Height
}

// Intersect clips the rectangle against image bounds [0,w)×[0,h).
// The result may have zero width or height if the rectangle lies outside.
func (r RectInt) Intersect(w, h int) RectInt {
	x0 := max(r.X, 0)
	y0 := max(r.Y, 0)
	x1 := min(r.X+r.Width, w)
	y1 := min(r.Y+r.Height, h)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Pad grows the rectangle by pad pixels on every side.
func (r RectInt) Pad(pad int) RectInt {
	return RectInt{X: r.X - pad, Y: r.Y - pad, Width: r.Width + 2*pad, Height: r.Height + 2*pad}
}

// Homography represents a 3x3 projective transformation matrix.
type Homography struct {
	M [3][3]float64
}

// IdentityHomography returns the identity transform.
func IdentityHomography() Homography {
	return Homography{M: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Apply maps a point through the homography. Returns false if the point
// projects to infinity (degenerate transform).
func (t Homography) Apply(p Point2D) (Point2D, bool) {
	w := t.M[2][0]*p.X + t.M[2][1]*p.Y + t.M[2][2]
	if math.Abs(w) < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{
		X: (t.M[0][0]*p.X + t.M[0][1]*p.Y + t.M[0][2]) / w,
		Y: (t.M[1][0]*p.X + t.M[1][1]*p.Y + t.M[1][2]) / w,
	}, true
}

// IsDegenerate reports whether the homography cannot be meaningfully
// applied: a non-finite entry, a near-zero determinant, or a perspective
// row so large the warp would fold the image.
func (t Homography) IsDegenerate() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(t.M[i][j]) || math.IsInf(t.M[i][j], 0) {
				return true
			}
		}
	}
	det := t.M[0][0]*(t.M[1][1]*t.M[2][2]-t.M[1][2]*t.M[2][1]) -
		t.M[0][1]*(t.M[1][0]*t.M[2][2]-t.M[1][2]*t.M[2][0]) +
		t.M[0][2]*(t.M[1][0]*t.M[2][1]-t.M[1][1]*t.M[2][0])
	if math.Abs(det) < 1e-8 {
		return true
	}
	if math.Abs(t.M[2][0]) > 0.01 || math.Abs(t.M[2][1]) > 0.01 {
		return true
	}
	return false
}
