package alignment

import (
	"math"
	"math/rand"
	"testing"

	"screendiff/pkg/geometry"
)

func applyAll(t *testing.T, transform geometry.Homography, pts []geometry.Point2D) []geometry.Point2D {
	t.Helper()
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		mapped, ok := transform.Apply(p)
		if !ok {
			t.Fatalf("transform degenerate at point %v", p)
		}
		out[i] = mapped
	}
	return out
}

func gridPoints(w, h float64, n int) []geometry.Point2D {
	rng := rand.New(rand.NewSource(7))
	pts := make([]geometry.Point2D, n)
	for i := range pts {
		pts[i] = geometry.Point2D{X: rng.Float64() * w, Y: rng.Float64() * h}
	}
	return pts
}

func TestHomographyRecoversTranslation(t *testing.T) {
	src := gridPoints(800, 600, 30)
	shift := geometry.Homography{M: [3][3]float64{{1, 0, 25}, {0, 1, -12}, {0, 0, 1}}}
	dst := applyAll(t, shift, src)

	transform, inliers, err := ComputeHomographyRANSAC(src, dst, 500, 3.0)
	if err != nil {
		t.Fatalf("RANSAC failed: %v", err)
	}
	if len(inliers) < len(src)*9/10 {
		t.Errorf("only %d/%d inliers for a noiseless translation", len(inliers), len(src))
	}
	if errPx := ReprojectionError(src, dst, transform); errPx > 0.5 {
		t.Errorf("reprojection error %f px, want < 0.5", errPx)
	}
}

func TestHomographyRejectsOutliers(t *testing.T) {
	src := gridPoints(800, 600, 40)
	scale := geometry.Homography{M: [3][3]float64{{1.05, 0, 10}, {0, 1.05, 5}, {0, 0, 1}}}
	dst := applyAll(t, scale, src)

	// Corrupt a quarter of the correspondences.
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 10; i++ {
		dst[i].X += 100 + rng.Float64()*200
		dst[i].Y -= 100 + rng.Float64()*200
	}

	transform, _, err := ComputeHomographyRANSAC(src, dst, 1000, 3.0)
	if err != nil {
		t.Fatalf("RANSAC failed: %v", err)
	}

	// Clean correspondences should still reproject accurately.
	if errPx := ReprojectionError(src[10:], dst[10:], transform); errPx > 1.0 {
		t.Errorf("reprojection error on clean points %f px, want < 1.0", errPx)
	}
}

func TestHomographyTooFewPoints(t *testing.T) {
	pts := gridPoints(100, 100, 3)
	if _, _, err := ComputeHomographyRANSAC(pts, pts, 100, 3.0); err == nil {
		t.Error("expected error with fewer than 4 points")
	}
}

func TestHomographyMismatchedCounts(t *testing.T) {
	src := gridPoints(100, 100, 8)
	dst := gridPoints(100, 100, 7)
	if _, _, err := ComputeHomographyRANSAC(src, dst, 100, 3.0); err == nil {
		t.Error("expected error for mismatched point counts")
	}
}

func TestLeastSquaresExactFourPoints(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	dst := []geometry.Point2D{{X: 5, Y: 5}, {X: 108, Y: 3}, {X: 110, Y: 104}, {X: 3, Y: 102}}

	transform, err := homographyLeastSquares(src, dst)
	if err != nil {
		t.Fatalf("least squares failed: %v", err)
	}
	for i := range src {
		mapped, ok := transform.Apply(src[i])
		if !ok {
			t.Fatalf("degenerate at %v", src[i])
		}
		if mapped.Distance(dst[i]) > 1e-6 {
			t.Errorf("point %d maps to %v, want %v", i, mapped, dst[i])
		}
	}
	if math.Abs(transform.M[2][2]-1) > 1e-9 {
		t.Errorf("h33 = %f, want 1", transform.M[2][2])
	}
}
