package geometry

import (
	"math"
	"testing"
)

func TestBoxPixelsRoundTrip(t *testing.T) {
	r := RectInt{X: 50, Y: 50, Width: 100, Height: 40}
	b := NewBoxFromPixels(r, 800, 600)

	if !b.Valid() {
		t.Fatalf("box from pixels should be valid: %+v", b)
	}

	back := b.Pixels(800, 600)
	if back != r {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, r)
	}
}

func TestBoxClamp(t *testing.T) {
	cases := []struct {
		name string
		in   Box
	}{
		{"overflow right", Box{X: 0.9, Y: 0.1, W: 0.3, H: 0.2}},
		{"negative origin", Box{X: -0.05, Y: -0.05, W: 0.2, H: 0.2}},
		{"oversized", Box{X: 0, Y: 0, W: 1.5, H: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.in.Clamp()
			if !out.Valid() {
				t.Errorf("clamped box invalid: %+v", out)
			}
		})
	}
}

func TestBoxIoU(t *testing.T) {
	a := Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}

	if got := a.IoU(a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self IoU = %f, want 1.0", got)
	}

	disjoint := Box{X: 0.6, Y: 0.6, W: 0.2, H: 0.2}
	if got := a.IoU(disjoint); got != 0 {
		t.Errorf("disjoint IoU = %f, want 0", got)
	}

	// Half-overlapping box of the same size: intersection is half of
	// one box, union is 1.5 boxes, so IoU = 1/3.
	half := Box{X: 0.2, Y: 0.1, W: 0.2, H: 0.2}
	if got := a.IoU(half); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("half-overlap IoU = %f, want 1/3", got)
	}
}

func TestBoxContainment(t *testing.T) {
	outer := Box{X: 0.1, Y: 0.1, W: 0.4, H: 0.4}
	inner := Box{X: 0.2, Y: 0.2, W: 0.1, H: 0.1}

	if got := outer.Containment(inner); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("contained box containment = %f, want 1.0", got)
	}
	if got := inner.Containment(outer); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("containment should be symmetric in the smaller box: got %f", got)
	}
}

func TestBoxUnion(t *testing.T) {
	a := Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}
	b := Box{X: 0.25, Y: 0.2, W: 0.2, H: 0.3}

	u := a.Union(b)
	want := Box{X: 0.1, Y: 0.1, W: 0.35, H: 0.4}
	if math.Abs(u.X-want.X) > 1e-9 || math.Abs(u.Y-want.Y) > 1e-9 ||
		math.Abs(u.W-want.W) > 1e-9 || math.Abs(u.H-want.H) > 1e-9 {
		t.Errorf("union = %+v, want %+v", u, want)
	}
}

func TestHomographyApply(t *testing.T) {
	id := IdentityHomography()
	p, ok := id.Apply(Point2D{X: 3, Y: 4})
	if !ok || p.X != 3 || p.Y != 4 {
		t.Errorf("identity apply = %+v ok=%v", p, ok)
	}

	// Pure translation.
	tr := Homography{M: [3][3]float64{{1, 0, 10}, {0, 1, -5}, {0, 0, 1}}}
	p, ok = tr.Apply(Point2D{X: 1, Y: 1})
	if !ok || p.X != 11 || p.Y != -4 {
		t.Errorf("translation apply = %+v ok=%v", p, ok)
	}
	if tr.IsDegenerate() {
		t.Error("translation should not be degenerate")
	}

	zero := Homography{}
	if !zero.IsDegenerate() {
		t.Error("zero matrix should be degenerate")
	}
}
