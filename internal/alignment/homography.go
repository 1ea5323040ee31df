package alignment

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"screendiff/pkg/geometry"
)

// ComputeHomographyRANSAC estimates the projective transform mapping src
// points onto dst points using RANSAC with the given reprojection
// threshold in pixels. Returns the transform and the inlier indices.
// Uses a pure Go implementation for cross-version compatibility with the
// gocv calib3d bindings.
func ComputeHomographyRANSAC(src, dst []geometry.Point2D, iterations int, threshold float64) (geometry.Homography, []int, error) {
	if len(src) != len(dst) {
		return geometry.Homography{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return geometry.Homography{}, nil, fmt.Errorf("need at least 4 points, got %d", len(src))
	}

	n := len(src)
	bestInliers := []int{}
	var bestTransform geometry.Homography

	for iter := 0; iter < iterations; iter++ {
		// Randomly sample 4 point pairs
		indices := rand.Perm(n)[:4]

		sample := make([]geometry.Point2D, 4)
		target := make([]geometry.Point2D, 4)
		for i, idx := range indices {
			sample[i] = src[idx]
			target[i] = dst[idx]
		}

		transform, err := homographyLeastSquares(sample, target)
		if err != nil || transform.IsDegenerate() {
			continue
		}

		// Count inliers by reprojection error
		var inliers []int
		for i := range src {
			projected, ok := transform.Apply(src[i])
			if !ok {
				continue
			}
			if projected.Distance(dst[i]) < threshold {
				inliers = append(inliers, i)
			}
		}

		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestTransform = transform
		}
	}

	if len(bestInliers) < 4 {
		return geometry.Homography{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Recompute the transform over all inliers
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = src[idx]
		inlierDst[i] = dst[idx]
	}

	final, err := homographyLeastSquares(inlierSrc, inlierDst)
	if err != nil || final.IsDegenerate() {
		return bestTransform, bestInliers, nil
	}

	return final, bestInliers, nil
}

// homographyLeastSquares solves the DLT system for the 8 free homography
// parameters (h33 fixed at 1). With exactly 4 point pairs the system is
// square; with more it is solved in the least-squares sense.
func homographyLeastSquares(src, dst []geometry.Point2D) (geometry.Homography, error) {
	n := len(src)
	if n < 4 {
		return geometry.Homography{}, fmt.Errorf("need at least 4 points")
	}

	// Each correspondence contributes two rows:
	//   u = h11*x + h12*y + h13 - u*(h31*x + h32*y)
	//   v = h21*x + h22*y + h23 - v*(h31*x + h32*y)
	A := mat.NewDense(n*2, 8, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -u*x)
		A.Set(i*2, 7, -u*y)
		B.SetVec(i*2, u)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -v*x)
		A.Set(i*2+1, 7, -v*y)
		B.SetVec(i*2+1, v)
	}

	// Solve using QR decomposition
	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.Homography{}, err
	}

	h := geometry.Homography{M: [3][3]float64{
		{params.AtVec(0), params.AtVec(1), params.AtVec(2)},
		{params.AtVec(3), params.AtVec(4), params.AtVec(5)},
		{params.AtVec(6), params.AtVec(7), 1},
	}}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(h.M[i][j]) || math.IsInf(h.M[i][j], 0) {
				return geometry.Homography{}, fmt.Errorf("non-finite solution")
			}
		}
	}

	return h, nil
}

// ReprojectionError calculates the mean reprojection error of a transform
// over a set of correspondences.
func ReprojectionError(src, dst []geometry.Point2D, transform geometry.Homography) float64 {
	if len(src) != len(dst) || len(src) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range src {
		projected, ok := transform.Apply(src[i])
		if !ok {
			return math.Inf(1)
		}
		sum += projected.Distance(dst[i])
	}
	return sum / float64(len(src))
}
