package detect

import (
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// regionStdDev computes the population standard deviation of pixel values
// inside a rectangle of a single-channel 8-bit image.
func regionStdDev(gray gocv.Mat, rect image.Rectangle) float64 {
	rect = rect.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if rect.Empty() {
		return 0
	}

	roi := gray.Region(rect)
	defer roi.Close()

	// Clone to get a contiguous buffer for the view.
	cont := roi.Clone()
	defer cont.Close()

	data := cont.ToBytes()
	if len(data) == 0 {
		return 0
	}

	vals := make([]float64, len(data))
	for i, b := range data {
		vals[i] = float64(b)
	}
	return stat.PopStdDev(vals, nil)
}
