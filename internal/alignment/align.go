// Package alignment registers a candidate screenshot onto a reference
// screenshot before diffing, compensating for minor scroll, resize and
// render differences.
package alignment

import (
	"image"
	"log"
	"sort"

	"gocv.io/x/gocv"

	"screendiff/pkg/geometry"
)

// Options configures the alignment process.
type Options struct {
	MinKeypoints int     // below this many keypoints on either image, skip alignment
	MinMatches   int     // below this many descriptor matches, skip alignment
	MaxMatches   int     // keep only the best-N matches by distance
	RANSACIters  int     // RANSAC iterations for homography estimation
	ReprojectPx  float64 // RANSAC reprojection threshold in pixels
}

// DefaultOptions returns default alignment options.
func DefaultOptions() Options {
	return Options{
		MinKeypoints: 6,
		MinMatches:   6,
		MaxMatches:   50,
		RANSACIters:  2000,
		ReprojectPx:  5.0,
	}
}

// Align warps the candidate image onto the reference's coordinate frame
// using ORB feature matching and a RANSAC homography. Returns the aligned
// image and whether a transform was actually applied.
//
// Alignment never aborts the pipeline: any degenerate condition falls
// back to the candidate resized to the reference's dimensions, with
// applied=false. The caller owns the returned Mat.
func Align(reference, candidate gocv.Mat, opts Options) (gocv.Mat, bool) {
	if reference.Empty() || candidate.Empty() {
		return resizeToReference(candidate, reference)
	}

	grayRef := toGray(reference)
	defer grayRef.Close()
	grayCand := toGray(candidate)
	defer grayCand.Close()

	orb := gocv.NewORB()
	defer orb.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	kpRef, desRef := orb.DetectAndCompute(grayRef, noMask)
	defer desRef.Close()
	kpCand, desCand := orb.DetectAndCompute(grayCand, noMask)
	defer desCand.Close()

	if len(kpRef) < opts.MinKeypoints || len(kpCand) < opts.MinKeypoints ||
		desRef.Empty() || desCand.Empty() {
		log.Printf("alignment: too few keypoints (ref=%d cand=%d), using unaligned candidate",
			len(kpRef), len(kpCand))
		return resizeToReference(candidate, reference)
	}

	matches := matchDescriptors(desRef, desCand, opts.MaxMatches)
	if len(matches) < opts.MinMatches {
		log.Printf("alignment: only %d matches, using unaligned candidate", len(matches))
		return resizeToReference(candidate, reference)
	}

	// Homography maps candidate points onto reference points.
	srcPts := make([]geometry.Point2D, 0, len(matches))
	dstPts := make([]geometry.Point2D, 0, len(matches))
	for _, m := range matches {
		if m.QueryIdx >= len(kpRef) || m.TrainIdx >= len(kpCand) {
			continue
		}
		ref := kpRef[m.QueryIdx]
		cand := kpCand[m.TrainIdx]
		srcPts = append(srcPts, geometry.Point2D{X: cand.X, Y: cand.Y})
		dstPts = append(dstPts, geometry.Point2D{X: ref.X, Y: ref.Y})
	}

	transform, inliers, err := ComputeHomographyRANSAC(srcPts, dstPts, opts.RANSACIters, opts.ReprojectPx)
	if err != nil {
		log.Printf("alignment: homography estimation failed (%v), using unaligned candidate", err)
		return resizeToReference(candidate, reference)
	}
	if transform.IsDegenerate() {
		log.Printf("alignment: degenerate homography (%d inliers), using unaligned candidate", len(inliers))
		return resizeToReference(candidate, reference)
	}

	warped := warpPerspective(candidate, transform, reference.Cols(), reference.Rows())
	return warped, true
}

// matchDescriptors matches two binary descriptor sets with mutual
// cross-checking and returns the best-N matches sorted by distance.
func matchDescriptors(desRef, desCand gocv.Mat, maxMatches int) []gocv.DMatch {
	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	// With cross-checking each query yields at most one mutual match.
	knn := matcher.KnnMatch(desRef, desCand, 1)

	matches := make([]gocv.DMatch, 0, len(knn))
	for _, candidates := range knn {
		if len(candidates) > 0 {
			matches = append(matches, candidates[0])
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches
}

// warpPerspective applies a homography to an image.
func warpPerspective(src gocv.Mat, transform geometry.Homography, width, height int) gocv.Mat {
	transformMat := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			transformMat.SetDoubleAt(i, j, transform.M[i][j])
		}
	}
	defer transformMat.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, transformMat, image.Point{X: width, Y: height})
	return dst
}

// resizeToReference returns the candidate scaled to the reference's
// dimensions without any geometric registration.
func resizeToReference(candidate, reference gocv.Mat) (gocv.Mat, bool) {
	if candidate.Empty() {
		return gocv.NewMat(), false
	}
	if reference.Empty() ||
		(candidate.Cols() == reference.Cols() && candidate.Rows() == reference.Rows()) {
		return candidate.Clone(), false
	}
	resized := gocv.NewMat()
	gocv.Resize(candidate, &resized, image.Point{X: reference.Cols(), Y: reference.Rows()},
		0, 0, gocv.InterpolationArea)
	return resized, false
}

// toGray converts an image to single-channel grayscale, cloning if it
// already is.
func toGray(img gocv.Mat) gocv.Mat {
	if img.Channels() == 1 {
		return img.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}
