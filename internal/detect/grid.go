package detect

import (
	"image"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

// Grid fallback tuning.
const (
	gridVarianceThreshold = 18.0 // cells with lower pixel std-dev are flat background
	gridCellShrink        = 0.15 // fraction trimmed from each side to avoid edge artifacts
)

// gridFallback partitions the image into a coarse grid and keeps cells
// with enough pixel variance to plausibly contain content. It never
// returns an empty list: a perfectly flat image yields three synthetic
// boxes near the top third so downstream consumers always have elements
// to work with.
func gridFallback(gray gocv.Mat, imgW, imgH int) []element.Detected {
	rows := 4
	if imgH > 900 {
		rows = 5
	}
	cols := 3
	if imgW > 1200 {
		cols = 4
	}

	var elements []element.Detected
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x1 := col * imgW / cols
			x2 := (col + 1) * imgW / cols
			y1 := row * imgH / rows
			y2 := (row + 1) * imgH / rows
			if x2 <= x1 || y2 <= y1 {
				continue
			}

			std := regionStdDev(gray, image.Rect(x1, y1, x2, y2))
			if std < gridVarianceThreshold {
				continue
			}

			shrinkX := int(float64(x2-x1) * gridCellShrink)
			shrinkY := int(float64(y2-y1) * gridCellShrink)
			sx1 := min(max(x1+shrinkX, 0), imgW-1)
			sy1 := min(max(y1+shrinkY, 0), imgH-1)
			sx2 := max(min(x2-shrinkX, imgW), sx1+5)
			sy2 := max(min(y2-shrinkY, imgH), sy1+5)

			confidence := 0.35 + std/90.0
			if confidence > 1.0 {
				confidence = 1.0
			}

			elements = append(elements, element.Detected{
				Box: geometry.NewBoxFromPixels(geometry.RectInt{
					X: sx1, Y: sy1, Width: sx2 - sx1, Height: sy2 - sy1,
				}, imgW, imgH).Clamp(),
				AreaPx:     float64((sx2 - sx1) * (sy2 - sy1)),
				Confidence: confidence,
			})
		}
	}

	if len(elements) == 0 {
		elements = syntheticElements(imgW, imgH)
	}
	return elements
}

// syntheticElements is the guaranteed last resort for a completely flat
// screenshot: three fixed boxes across the top third of the image.
func syntheticElements(imgW, imgH int) []element.Detected {
	centers := []float64{0.25, 0.5, 0.75}
	elements := make([]element.Detected, 0, len(centers))
	for _, cx := range centers {
		box := geometry.Box{X: cx - 0.15, Y: 0.1, W: 0.3, H: 0.15}.Clamp()
		elements = append(elements, element.Detected{
			Box:        box,
			AreaPx:     box.Area() * float64(imgW) * float64(imgH),
			Confidence: 0.35,
		})
	}
	return elements
}
