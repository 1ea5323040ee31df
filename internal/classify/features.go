// Package classify assigns a UI element type (button, input, label,
// image, link) to detected regions. Three signal sources feed it, in
// order of trust: the detector's own class label, a trained
// nearest-neighbour model over visual features, and shape/contrast
// heuristics.
package classify

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"screendiff/pkg/geometry"
)

// FeatureCount is the length of the visual feature vector: geometry,
// brightness statistics, edge response, a coarse histogram, texture and
// mean colour.
const FeatureCount = 21

// ExtractFeatures computes the visual feature vector for one region of
// a BGR screenshot. An empty or degenerate region yields a zero vector.
func ExtractFeatures(img gocv.Mat, box geometry.Box, imgW, imgH int) []float64 {
	features := make([]float64, 0, FeatureCount)

	rect := box.Pixels(imgW, imgH)
	if rect.Width < 1 || rect.Height < 1 || img.Empty() {
		return make([]float64, FeatureCount)
	}

	roi := img.Region(image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height))
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if roi.Channels() == 3 {
		gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)
	} else {
		roi.CopyTo(&gray)
	}

	pixels := grayBytes(gray)
	if len(pixels) == 0 {
		return make([]float64, FeatureCount)
	}

	w := float64(rect.Width)
	h := float64(rect.Height)
	area := w * h
	relArea := area / float64(imgW*imgH)
	features = append(features, w/math.Max(h, 1), area, relArea, w, h)

	mean, std := stat.MeanStdDev(pixels, nil)
	if math.IsNaN(std) {
		std = 0
	}
	minV, maxV := pixels[0], pixels[0]
	for _, p := range pixels {
		minV = math.Min(minV, p)
		maxV = math.Max(maxV, p)
	}
	features = append(features, mean, std, minV, maxV)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)
	edgeDensity := float64(gocv.CountNonZero(edges)) / math.Max(area, 1)
	features = append(features, edgeDensity, edges.Mean().Val1)

	features = append(features, histogram5(pixels)...)

	tMean, tStd := textureResponse(gray)
	features = append(features, tMean, tStd)

	if roi.Channels() == 3 {
		hsv := gocv.NewMat()
		defer hsv.Close()
		gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)
		m := hsv.Mean()
		features = append(features, m.Val1, m.Val2, m.Val3)
	} else {
		features = append(features, 0, 0, 0)
	}

	return sanitize(features)
}

// grayBytes materialises a grayscale Mat as float64 samples. Region
// views share the parent's stride, so the Mat is cloned first to get a
// contiguous buffer.
func grayBytes(gray gocv.Mat) []float64 {
	contiguous := gray.Clone()
	defer contiguous.Close()
	raw := contiguous.ToBytes()
	pixels := make([]float64, len(raw))
	for i, b := range raw {
		pixels[i] = float64(b)
	}
	return pixels
}

// histogram5 returns a normalized 5-bin intensity histogram.
func histogram5(pixels []float64) []float64 {
	bins := make([]float64, 5)
	for _, p := range pixels {
		idx := int(p / 51.2)
		if idx > 4 {
			idx = 4
		}
		bins[idx]++
	}
	total := float64(len(pixels))
	for i := range bins {
		bins[i] /= total
	}
	return bins
}

// textureResponse convolves the region with a Laplacian-style kernel
// and returns the mean absolute response and its spread. Regions too
// small for the kernel report zero.
func textureResponse(gray gocv.Mat) (float64, float64) {
	if gray.Rows() <= 3 || gray.Cols() <= 3 {
		return 0, 0
	}

	src := gocv.NewMat()
	defer src.Close()
	gray.ConvertTo(&src, gocv.MatTypeCV32F)

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kernel.SetFloatAt(i, j, -1)
		}
	}
	kernel.SetFloatAt(1, 1, 8)

	response := gocv.NewMat()
	defer response.Close()
	gocv.Filter2D(src, &response, -1, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault)

	rows := response.Rows()
	cols := response.Cols()
	values := make([]float64, 0, rows*cols)
	absSum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := float64(response.GetFloatAt(i, j))
			values = append(values, v)
			absSum += math.Abs(v)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	_, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return absSum / float64(len(values)), std
}

// sanitize replaces non-finite entries: NaN and -Inf become 0, +Inf
// becomes 1.
func sanitize(features []float64) []float64 {
	for i, f := range features {
		switch {
		case math.IsNaN(f):
			features[i] = 0
		case math.IsInf(f, 1):
			features[i] = 1
		case math.IsInf(f, -1):
			features[i] = 0
		}
	}
	return features
}
