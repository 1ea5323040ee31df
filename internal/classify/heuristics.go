package classify

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

// Shape and contrast cutoffs for the rule-based classifier. Tuned on
// desktop and web screenshots; small elements lean button, wide flat
// elements lean input or label.
const (
	smallRelArea     = 0.001
	verySmallRelArea = 0.0001
	borderStdCutoff  = 15.0
	contextPad       = 2
)

// regionStats are the visual measurements the heuristic rules consume.
type regionStats struct {
	aspect      float64
	relArea     float64
	widthPx     int
	heightPx    int
	brightness  float64
	contrast    float64
	edgeDensity float64
	hasBorder   bool
}

// Heuristic classifies a region by shape, brightness and edge structure
// alone. Confidence reflects how decisive the matched rule is.
func Heuristic(img gocv.Mat, box geometry.Box, imgW, imgH int) (element.Type, float64) {
	stats, ok := measureRegion(img, box, imgW, imgH)
	if !ok {
		return element.TypeUnknown, 0
	}
	return applyRules(stats, imgH)
}

// measureRegion extracts the rule inputs for one region, sampling a
// couple of context pixels around it so borders at the exact box edge
// are still seen.
func measureRegion(img gocv.Mat, box geometry.Box, imgW, imgH int) (regionStats, bool) {
	rect := box.Pixels(imgW, imgH)
	if rect.Width < 1 || rect.Height < 1 || img.Empty() {
		return regionStats{}, false
	}

	padded := rect.Pad(contextPad).Intersect(imgW, imgH)
	roi := img.Region(image.Rect(padded.X, padded.Y, padded.X+padded.Width, padded.Y+padded.Height))
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if roi.Channels() == 3 {
		gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)
	} else {
		roi.CopyTo(&gray)
	}

	inner := gray.Clone()
	defer inner.Close()
	if gray.Rows() > contextPad*2 && gray.Cols() > contextPad*2 {
		view := gray.Region(image.Rect(contextPad, contextPad,
			min(contextPad+rect.Width, gray.Cols()), min(contextPad+rect.Height, gray.Rows())))
		view.CopyTo(&inner)
		view.Close()
	}

	pixels := grayBytes(inner)
	if len(pixels) == 0 {
		return regionStats{}, false
	}
	brightness, contrast := stat.MeanStdDev(pixels, nil)
	if math.IsNaN(contrast) {
		contrast = 0
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(inner, &edges, 50, 150)
	area := float64(rect.Width * rect.Height)
	edgeDensity := float64(gocv.CountNonZero(edges)) / math.Max(area, 1)

	return regionStats{
		aspect:      float64(rect.Width) / math.Max(float64(rect.Height), 1),
		relArea:     area / float64(imgW*imgH),
		widthPx:     rect.Width,
		heightPx:    rect.Height,
		brightness:  brightness,
		contrast:    contrast,
		edgeDensity: edgeDensity,
		hasBorder:   hasRectBorder(inner),
	}, true
}

// hasRectBorder samples thin strips along each edge of the region; a
// crisp frame shows up as high intensity variation in the strips.
func hasRectBorder(inner gocv.Mat) bool {
	w := inner.Cols()
	h := inner.Rows()
	thickness := clampInt(int(float64(min(w, h))*0.05), 1, 3)
	if w <= thickness*2 || h <= thickness*2 {
		return false
	}

	strips := []image.Rectangle{
		image.Rect(0, 0, w, thickness),   // top
		image.Rect(0, h-thickness, w, h), // bottom
		image.Rect(0, 0, thickness, h),   // left
		image.Rect(w-thickness, 0, w, h), // right
	}

	sum := 0.0
	for _, s := range strips {
		strip := inner.Region(s)
		pixels := grayBytes(strip)
		strip.Close()
		if len(pixels) == 0 {
			return false
		}
		_, std := stat.MeanStdDev(pixels, nil)
		if math.IsNaN(std) {
			std = 0
		}
		sum += std
	}
	return sum/4 > borderStdCutoff
}

// applyRules walks the classification rules in priority order.
func applyRules(s regionStats, imgH int) (element.Type, float64) {
	isSmall := s.relArea < smallRelArea
	isVerySmall := s.relArea < verySmallRelArea
	isCompact := s.aspect >= 0.8 && s.aspect <= 1.2

	// Tiny elements are icons or small buttons.
	if isVerySmall || (isSmall && isCompact) {
		if s.hasBorder || s.edgeDensity > 0.15 {
			return element.TypeButton, 0.85
		}
		if s.contrast > 40 {
			return element.TypeButton, 0.75
		}
	}

	// Inputs: wide, flat, bright uniform background.
	if s.aspect > 2.5 && float64(s.heightPx) < float64(imgH)*0.06 {
		if s.brightness > 220 {
			return element.TypeInput, 0.9
		}
		if s.brightness > 200 && s.contrast < 30 {
			return element.TypeInput, 0.8
		}
	}

	// Buttons: mid-sized, bordered, high contrast.
	if s.aspect >= 0.4 && s.aspect <= 4.0 && s.relArea >= 0.0005 && s.relArea <= 0.15 {
		score := 0.0
		if s.hasBorder {
			score += 0.35
		}
		if s.contrast > 40 {
			score += 0.25
		} else if s.contrast > 30 {
			score += 0.15
		}
		if s.edgeDensity > 0.15 {
			score += 0.25
		} else if s.edgeDensity > 0.10 {
			score += 0.15
		}
		if !s.hasBorder && s.contrast < 25 {
			score -= 0.4
		}
		if score >= 0.5 {
			return element.TypeButton, math.Min(0.9, 0.5+score*0.4)
		}
		if s.aspect < 3.0 {
			if s.contrast > 30 && (s.hasBorder || s.edgeDensity > 0.1) {
				return element.TypeButton, 0.75
			}
			if s.contrast > 25 {
				return element.TypeButton, 0.65
			}
		}
	}

	// Labels: wide, flat tone, no frame.
	if s.aspect > 1.5 {
		if !s.hasBorder && s.contrast < 35 {
			labelScore := 0.0
			if s.contrast < 25 {
				labelScore += 0.4
			}
			if s.edgeDensity < 0.08 {
				labelScore += 0.3
			}
			if labelScore >= 0.5 {
				return element.TypeLabel, math.Min(0.9, 0.5+labelScore*0.4)
			}
		}
		if s.aspect > 2.5 && !s.hasBorder && s.contrast < 35 {
			return element.TypeLabel, 0.8
		}
		if s.aspect > 1.8 && s.contrast < 30 {
			return element.TypeLabel, 0.75
		}
	}

	// Images: near-square and large.
	if s.aspect >= 0.6 && s.aspect <= 1.4 && s.relArea > 0.03 {
		if s.contrast > 50 {
			return element.TypeImage, 0.8
		}
		if s.relArea > 0.1 {
			return element.TypeImage, 0.7
		}
	}

	// Links: small horizontal strips of flat text.
	if s.aspect > 2.5 && s.relArea < 0.005 && s.contrast < 25 {
		return element.TypeLink, 0.6
	}

	if isSmall && s.hasBorder {
		return element.TypeButton, 0.6
	}

	// Last resort before unknown: text-like shapes become labels.
	if s.aspect > 1.5 && !s.hasBorder && s.contrast < 40 {
		if s.edgeDensity < 0.12 {
			return element.TypeLabel, 0.65
		}
		if s.aspect > 2.0 && s.contrast < 35 {
			return element.TypeLabel, 0.7
		}
	}

	return element.TypeUnknown, 0.3
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
