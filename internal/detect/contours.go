package detect

import (
	"image"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

// Contour-to-element filters. Tuned empirically; treat as approximate.
const (
	minRelativeArea = 0.00002 // contours below max(30, this*total) pixels are noise
	maxRelativeArea = 0.18    // boxes above this fraction of the image are containers, not elements
	minBoxSide      = 6       // px
	maxBoxSpan      = 0.98    // boxes covering more of either dimension are the page itself
	minInteriorStd  = 12.0    // near-uniform interiors are not real elements
)

// candidateBox is an intermediate contour measurement: the bounding
// rectangle plus the true contour area (which can be much smaller than
// the rectangle for thin or concave shapes).
type candidateBox struct {
	rect   image.Rectangle
	areaPx float64
}

// collectContourBoxes finds external contours in a binary image,
// optionally closing it first with the given kernel, and records their
// bounding boxes.
func collectContourBoxes(binary gocv.Mat, kernel gocv.Mat, closeIterations int, out *[]candidateBox) {
	processed := binary
	if closeIterations > 0 {
		closed := binary.Clone()
		for i := 0; i < closeIterations; i++ {
			gocv.MorphologyEx(closed, &closed, gocv.MorphClose, kernel)
		}
		defer closed.Close()
		processed = closed
	}

	contours := gocv.FindContours(processed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		*out = append(*out, candidateBox{
			rect:   gocv.BoundingRect(contour),
			areaPx: gocv.ContourArea(contour),
		})
	}
}

// heuristicCandidates runs every contour-producing source over the image
// and returns the union of their raw candidate boxes. Sources mirror the
// signal types UI elements leave behind: intensity steps (adaptive
// thresholds), thin strokes (top-hat/black-hat), outlines (gradient,
// Canny), text blobs (MSER) and solid fills (bright/dark thresholds).
func heuristicCandidates(img gocv.Mat, enhanced gocv.Mat) []candidateBox {
	w := img.Cols()
	h := img.Rows()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(enhanced, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	shortSide := w
	if h < shortSide {
		shortSide = h
	}
	kSmallSize := max(3, int(float64(shortSide)*0.005))
	kMediumSize := max(kSmallSize+2, int(float64(shortSide)*0.01))
	kLargeSize := max(kMediumSize+4, int(float64(shortSide)*0.02))

	kSmall := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kSmallSize, Y: kSmallSize})
	defer kSmall.Close()
	kMedium := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kMediumSize, Y: kMediumSize})
	defer kMedium.Close()
	kLarge := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kLargeSize, Y: kLargeSize})
	defer kLarge.Close()

	var boxes []candidateBox

	// Adaptive thresholding, two parameterizations
	thGauss := gocv.NewMat()
	defer thGauss.Close()
	gocv.AdaptiveThreshold(blurred, &thGauss, 255, gocv.AdaptiveThresholdGaussian,
		gocv.ThresholdBinaryInv, 15, 2)
	collectContourBoxes(thGauss, kSmall, 2, &boxes)

	thMean := gocv.NewMat()
	defer thMean.Close()
	gocv.AdaptiveThreshold(blurred, &thMean, 255, gocv.AdaptiveThresholdMean,
		gocv.ThresholdBinaryInv, 21, 4)
	collectContourBoxes(thMean, kMedium, 1, &boxes)

	// Top-hat / black-hat for thin elements (icons, text strokes)
	tophat := gocv.NewMat()
	defer tophat.Close()
	gocv.MorphologyEx(blurred, &tophat, gocv.MorphTophat, kSmall)
	thTophat := gocv.NewMat()
	defer thTophat.Close()
	gocv.Threshold(tophat, &thTophat, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	collectContourBoxes(thTophat, kSmall, 1, &boxes)

	blackhat := gocv.NewMat()
	defer blackhat.Close()
	gocv.MorphologyEx(blurred, &blackhat, gocv.MorphBlackhat, kSmall)
	thBlackhat := gocv.NewMat()
	defer thBlackhat.Close()
	gocv.Threshold(blackhat, &thBlackhat, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	collectContourBoxes(thBlackhat, kSmall, 1, &boxes)

	// Morphological gradient highlights rectangular outlines
	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.MorphologyEx(blurred, &gradient, gocv.MorphGradient, kSmall)
	gradThresh := gocv.NewMat()
	defer gradThresh.Close()
	gocv.Threshold(gradient, &gradThresh, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	collectContourBoxes(gradThresh, kSmall, 2, &boxes)

	// Canny edges at two sensitivity levels, dilated to bridge strokes
	for _, cfg := range []struct {
		low, high float32
		kernel    gocv.Mat
	}{
		{40, 120, kSmall},
		{20, 60, kLarge},
	} {
		edges := gocv.NewMat()
		gocv.Canny(blurred, &edges, cfg.low, cfg.high)
		gocv.Dilate(edges, &edges, cfg.kernel)
		collectContourBoxes(edges, cfg.kernel, 0, &boxes)
		edges.Close()
	}

	// MSER for text-like blobs
	boxes = append(boxes, mserCandidates(blurred)...)

	// Bright / dark solid fills
	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(enhanced, &bright, 220, 255, gocv.ThresholdBinary)
	collectContourBoxes(bright, kMedium, 1, &boxes)

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(enhanced, &dark, 60, 255, gocv.ThresholdBinaryInv)
	collectContourBoxes(dark, kMedium, 1, &boxes)

	return boxes
}

// mserCandidates detects stable extremal regions and reports them as
// boxes sized by the keypoint diameter.
func mserCandidates(gray gocv.Mat) []candidateBox {
	mser := gocv.NewMSER()
	defer mser.Close()

	keypoints := mser.Detect(gray)
	boxes := make([]candidateBox, 0, len(keypoints))
	for _, kp := range keypoints {
		half := kp.Size / 2
		if half < 1 {
			continue
		}
		rect := image.Rect(
			int(kp.X-half), int(kp.Y-half),
			int(kp.X+half), int(kp.Y+half),
		)
		boxes = append(boxes, candidateBox{
			rect:   rect,
			areaPx: kp.Size * kp.Size,
		})
	}
	return boxes
}

// boxesToElements converts raw candidate boxes to detected elements,
// discarding noise: tiny or near-full-page contours, hairline boxes, and
// (when a grayscale reference is supplied) boxes over near-uniform
// regions.
func boxesToElements(boxes []candidateBox, imgW, imgH int, gray *gocv.Mat) []element.Detected {
	totalArea := float64(imgW * imgH)
	if totalArea <= 0 {
		return nil
	}

	minArea := 30.0
	if scaled := totalArea * minRelativeArea; scaled > minArea {
		minArea = scaled
	}
	maxArea := totalArea * 0.8

	var elements []element.Detected
	for _, cb := range boxes {
		if cb.areaPx < minArea || cb.areaPx > maxArea {
			continue
		}

		rect := cb.rect.Intersect(image.Rect(0, 0, imgW, imgH))
		bw := rect.Dx()
		bh := rect.Dy()
		if bw < minBoxSide || bh < minBoxSide {
			continue
		}
		if float64(bw) > float64(imgW)*maxBoxSpan || float64(bh) > float64(imgH)*maxBoxSpan {
			continue
		}

		relativeArea := cb.areaPx / totalArea
		if relativeArea > maxRelativeArea {
			continue
		}

		if gray != nil && regionStdDev(*gray, rect) < minInteriorStd {
			continue
		}

		confidence := 0.4 + relativeArea*12
		if confidence > 1.0 {
			confidence = 1.0
		}

		elements = append(elements, element.Detected{
			Box: geometry.NewBoxFromPixels(geometry.RectInt{
				X: rect.Min.X, Y: rect.Min.Y, Width: bw, Height: bh,
			}, imgW, imgH).Clamp(),
			AreaPx:     cb.areaPx,
			Confidence: confidence,
		})
	}
	return elements
}
