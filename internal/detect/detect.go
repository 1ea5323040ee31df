// Package detect locates candidate UI elements on a screenshot. A
// learned detector runs first when a model is available; classical
// contour heuristics and finally a coarse grid split guarantee that
// detection never returns an empty result.
package detect

import (
	"image"
	"log"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
)

// Options controls the detection cascade.
type Options struct {
	// Learned is an optional neural detector. When nil only the
	// heuristic stages run.
	Learned *NetDetector
	// LearnedConfidence is the score threshold for learned detections.
	LearnedConfidence float64
	// MinElements is the target element count; stages keep running
	// until it is reached or the cascade is exhausted.
	MinElements int
}

// DefaultOptions returns detection options tuned for typical desktop
// and web screenshots.
func DefaultOptions() Options {
	return Options{
		LearnedConfidence: 0.15,
		MinElements:       12,
	}
}

// WithLearned attaches a neural detector.
func (o Options) WithLearned(d *NetDetector) Options {
	o.Learned = d
	return o
}

// Detect finds UI elements on a BGR screenshot. The result is never
// empty for a non-empty input: when every detection stage comes up
// short, fixed synthetic regions cover the likely content area.
func Detect(img gocv.Mat, opts Options) []element.Detected {
	if img.Empty() {
		return nil
	}

	imgW := img.Cols()
	imgH := img.Rows()

	minElements := opts.MinElements
	if minElements <= 0 {
		minElements = DefaultOptions().MinElements
	}

	var elements []element.Detected

	if opts.Learned != nil {
		elements = runLearned(img, opts.Learned, opts.LearnedConfidence, minElements)
	}

	if len(elements) < minElements {
		gray := toGray(img)
		defer gray.Close()
		enhanced := enhance(gray)
		defer enhanced.Close()

		boxes := heuristicCandidates(img, enhanced)
		heuristic := boxesToElements(boxes, imgW, imgH, &gray)
		log.Printf("detect: heuristic stage found %d candidates", len(heuristic))
		elements = MergeAndDedupe(elements, heuristic, imgW, imgH)

		if len(elements) < minElements {
			grid := gridFallback(gray, imgW, imgH)
			log.Printf("detect: grid fallback contributed %d regions", len(grid))
			elements = MergeAndDedupe(elements, grid, imgW, imgH)
		}
	}

	if len(elements) == 0 {
		log.Printf("detect: all stages empty, emitting synthetic regions")
		elements = syntheticElements(imgW, imgH)
	}
	return elements
}

// runLearned invokes the neural detector, retrying once at a relaxed
// threshold when the first pass is too sparse. Detector failures are
// logged and treated as an empty result so the cascade continues.
func runLearned(img gocv.Mat, det *NetDetector, confidence float64, minElements int) []element.Detected {
	if confidence <= 0 {
		confidence = DefaultOptions().LearnedConfidence
	}

	elements, err := det.Detect(img, confidence)
	if err != nil {
		log.Printf("detect: learned detector failed: %v", err)
		return nil
	}
	if len(elements) >= minElements {
		return RemoveDuplicates(elements)
	}

	relaxed := max(0.05, confidence*0.6)
	retried, err := det.Detect(img, relaxed)
	if err != nil {
		log.Printf("detect: learned detector retry failed: %v", err)
		return RemoveDuplicates(elements)
	}
	merged := combineLearnedPasses(elements, retried, img.Cols(), img.Rows())
	if len(merged) > len(elements) {
		log.Printf("detect: relaxed threshold %.2f raised detections %d -> %d",
			relaxed, len(elements), len(merged))
	}
	return merged
}

// combineLearnedPasses joins the strict-threshold and relaxed-threshold
// detection sets into one deduplicated set. A relaxed detection that the
// strict pass missed entirely is kept, while near-duplicates collapse
// onto the strict (higher-confidence) box.
func combineLearnedPasses(strict, relaxed []element.Detected, imgW, imgH int) []element.Detected {
	return MergeAndDedupe(strict, relaxed, imgW, imgH)
}

// toGray converts a BGR image to single-channel grayscale, cloning when
// the input already is one.
func toGray(img gocv.Mat) gocv.Mat {
	if img.Channels() == 1 {
		return img.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// enhance boosts local contrast and edge response ahead of the contour
// heuristics: CLAHE equalization followed by an unsharp kernel.
func enhance(gray gocv.Mat) gocv.Mat {
	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(gray, &equalized)

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kernel.SetFloatAt(i, j, -1)
		}
	}
	kernel.SetFloatAt(1, 1, 9)

	sharpened := gocv.NewMat()
	gocv.Filter2D(equalized, &sharpened, -1, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault)
	return sharpened
}
