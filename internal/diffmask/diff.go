// Package diffmask quantifies and localizes pixel differences between an
// aligned screenshot pair, and diagnoses per-element match status from
// the resulting mask. The binary mask and the SSIM score produced here
// are the sole measures of "difference" in the system.
package diffmask

import (
	"image"

	"gocv.io/x/gocv"
)

// DefaultTolerance is the default diff threshold as a fraction of the
// [0,1] intensity scale.
const DefaultTolerance = 0.12

// Compute converts both images to grayscale, computes the SSIM score and
// map, and reduces the inverted map to a binary 0/255 difference mask:
// normalize to 0-255, binarize at max(5, tolerance*255), then a 3x3
// morphological opening (speckle removal) followed by a two-iteration
// closing (connect nearby diff regions).
//
// The candidate must already be aligned to the reference's dimensions.
// The caller owns the returned mask.
func Compute(reference, aligned gocv.Mat, tolerance float64) (gocv.Mat, float64) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	grayRef := toGray(reference)
	defer grayRef.Close()
	grayCand := toGray(aligned)
	defer grayCand.Close()

	if grayCand.Cols() != grayRef.Cols() || grayCand.Rows() != grayRef.Rows() {
		resized := gocv.NewMat()
		gocv.Resize(grayCand, &resized, image.Point{X: grayRef.Cols(), Y: grayRef.Rows()},
			0, 0, gocv.InterpolationArea)
		grayCand.Close()
		grayCand = resized
	}

	score, ssimMap := SSIM(grayRef, grayCand)
	defer ssimMap.Close()

	// Invert similarity into difference: diff = 1 - ssim
	ssimMap.MultiplyFloat(-1)
	ssimMap.AddFloat(1)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(ssimMap, &normalized, 0, 255, gocv.NormMinMax)

	diff8 := gocv.NewMat()
	defer diff8.Close()
	normalized.ConvertTo(&diff8, gocv.MatTypeCV8U)

	thresholdPx := tolerance * 255
	if thresholdPx < 5 {
		thresholdPx = 5
	}

	mask := gocv.NewMat()
	gocv.Threshold(diff8, &mask, float32(thresholdPx), 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)
	for i := 0; i < 2; i++ {
		gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	}

	return mask, score
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
