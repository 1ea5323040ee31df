package pipeline

import (
	"screendiff/internal/diffmask"
)

// Config gathers the tunables of a comparison run. Zero values are
// replaced by defaults when the Context is created.
type Config struct {
	// Tolerance is the pixel-difference tolerance for the diff mask.
	Tolerance float64
	// ShiftPx is how far an element may move and still be matched to
	// its reference position.
	ShiftPx int

	// Thresholds drive the per-element verdicts.
	Thresholds diffmask.Thresholds

	// UseLearned enables the neural detector when a model is present.
	UseLearned bool
	// DetectorModelPath points at the detector model file.
	DetectorModelPath string
	// DetectorClasses names the detector's output classes in index order.
	DetectorClasses []string
	// LearnedConfidence is the detector score threshold.
	LearnedConfidence float64
	// MinElements is the target element count for the detection cascade.
	MinElements int

	// ClassifierModelPath points at a trained type classifier; empty
	// means heuristics only.
	ClassifierModelPath string

	// EnableOCR turns on text extraction for detected elements.
	EnableOCR bool
}

// DefaultConfig returns the configuration used by the command-line
// tools.
func DefaultConfig() Config {
	return Config{
		Tolerance:         diffmask.DefaultTolerance,
		ShiftPx:           diffmask.DefaultShiftPx,
		Thresholds:        diffmask.DefaultThresholds(),
		UseLearned:        true,
		LearnedConfidence: 0.15,
		MinElements:       12,
	}
}

// WithTolerance sets the diff tolerance.
func (c Config) WithTolerance(t float64) Config {
	c.Tolerance = t
	return c
}

// WithShiftPx sets the allowed element shift.
func (c Config) WithShiftPx(px int) Config {
	c.ShiftPx = px
	return c
}

// WithDetectorModel points the neural detector at a model file.
func (c Config) WithDetectorModel(path string, classes []string) Config {
	c.DetectorModelPath = path
	c.DetectorClasses = classes
	c.UseLearned = path != ""
	return c
}

// WithClassifierModel points the type classifier at a trained model.
func (c Config) WithClassifierModel(path string) Config {
	c.ClassifierModelPath = path
	return c
}

// WithOCR toggles element text extraction.
func (c Config) WithOCR(enabled bool) Config {
	c.EnableOCR = enabled
	return c
}

// normalized fills unset numeric fields with defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.ShiftPx <= 0 {
		c.ShiftPx = d.ShiftPx
	}
	if c.LearnedConfidence <= 0 {
		c.LearnedConfidence = d.LearnedConfidence
	}
	if c.MinElements <= 0 {
		c.MinElements = d.MinElements
	}
	if c.Thresholds == (diffmask.Thresholds{}) {
		c.Thresholds = d.Thresholds
	}
	return c
}
