package diffmask

import (
	"image"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
)

// Thresholds tunes per-element status classification.
type Thresholds struct {
	Missing   float64 // mismatch ratio at or above which an element is missing
	Changed   float64 // mismatch ratio at or above which an element is shifted
	MinRatio  float64 // floor for the effective changed threshold
	MinPixels int     // base minimum diff-pixel count for a verdict
}

// DefaultThresholds returns the standard diagnosis thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Missing:   0.7,
		Changed:   0.3,
		MinRatio:  0.04,
		MinPixels: 120,
	}
}

// DefaultShiftPx is the default layout-shift tolerance: element regions
// are padded by this many pixels before sampling the mask, so a small
// positional drift lands inside the sampled window instead of flagging
// the element.
const DefaultShiftPx = 18

// Diagnose classifies each element's match status against a binary diff
// mask of the reference image's dimensions. The mask is smoothed (median
// blur, opening, dilation) to suppress antialiasing noise and bridge
// small gaps before sampling.
//
// The two-threshold, area-scaled design avoids false "missing" verdicts
// on small elements: missing requires at least 15% of the box area
// changed, shifted at least 6%, both with an absolute pixel floor.
func Diagnose(elements []element.Classified, mask gocv.Mat, shiftPx int, th Thresholds) []element.Diagnostic {
	if mask.Empty() || len(elements) == 0 {
		return nil
	}

	w := mask.Cols()
	h := mask.Rows()

	smoothed := smoothMask(mask)
	defer smoothed.Close()

	if shiftPx < 0 {
		shiftPx = 0
	}

	effectiveChanged := th.Changed
	if th.MinRatio > effectiveChanged {
		effectiveChanged = th.MinRatio
	}
	effectiveMissing := th.Missing
	if effectiveChanged+0.2 > effectiveMissing {
		effectiveMissing = effectiveChanged + 0.2
	}

	diagnostics := make([]element.Diagnostic, 0, len(elements))
	for _, elem := range elements {
		box := elem.Box.Pixels(w, h)
		region := box.Pad(shiftPx).Intersect(w, h)
		if region.Width == 0 || region.Height == 0 {
			diagnostics = append(diagnostics, element.Diagnostic{
				ElementID: elem.ID,
				Status:    element.StatusOK,
			})
			continue
		}

		diffPixels := countRegion(smoothed, region.X, region.Y, region.Width, region.Height)
		ratio := float64(diffPixels) / float64(region.Area())

		// Pixel floors scale with the unpadded box area.
		boxArea := float64(box.Area())
		minMissing := int(boxArea * 0.15)
		if th.MinPixels > minMissing {
			minMissing = th.MinPixels
		}
		minShifted := int(boxArea * 0.06)
		if th.MinPixels/2 > minShifted {
			minShifted = th.MinPixels / 2
		}

		status := element.StatusOK
		switch {
		case ratio >= effectiveMissing && diffPixels >= minMissing:
			status = element.StatusMissing
		case ratio >= effectiveChanged && diffPixels >= minShifted:
			status = element.StatusShifted
		}

		diagnostics = append(diagnostics, element.Diagnostic{
			ElementID:     elem.ID,
			MismatchRatio: ratio,
			DiffPixels:    diffPixels,
			Status:        status,
		})
	}

	return diagnostics
}

// smoothMask suppresses isolated noise pixels and fills small gaps.
func smoothMask(mask gocv.Mat) gocv.Mat {
	smoothed := gocv.NewMat()
	gocv.MedianBlur(mask, &smoothed, 5)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()

	gocv.MorphologyEx(smoothed, &smoothed, gocv.MorphOpen, kernel)
	gocv.Dilate(smoothed, &smoothed, kernel)
	return smoothed
}

// countRegion counts nonzero mask pixels inside a rectangle.
func countRegion(mask gocv.Mat, x, y, w, h int) int {
	roi := mask.Region(image.Rect(x, y, x+w, y+h))
	defer roi.Close()
	return gocv.CountNonZero(roi)
}
