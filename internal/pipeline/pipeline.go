// Package pipeline wires image loading, alignment, diffing, detection
// and classification into the end-to-end screenshot comparison flow.
package pipeline

import (
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"screendiff/internal/alignment"
	"screendiff/internal/detect"
	"screendiff/internal/diffmask"
	"screendiff/internal/element"
	"screendiff/internal/imageio"
)

// ComparisonResult is the outcome of comparing a candidate screenshot
// against its reference.
type ComparisonResult struct {
	// Similarity is the structural similarity score in [0,1].
	Similarity float64 `json:"similarity"`
	// MismatchRatio is the fraction of pixels flagged as different.
	MismatchRatio float64 `json:"mismatch_ratio"`
	// FeatureAligned reports whether keypoint alignment succeeded; when
	// false the candidate was only resized to the reference geometry.
	FeatureAligned bool `json:"feature_aligned"`

	Elements    []element.Classified `json:"elements"`
	Diagnostics []element.Diagnostic `json:"diagnostics"`

	OKCount      int `json:"ok_count"`
	ShiftedCount int `json:"shifted_count"`
	MissingCount int `json:"missing_count"`

	// Coverage is the fraction of elements whose diagnostic status is
	// ok.
	Coverage float64 `json:"coverage"`
}

// Passed reports whether the comparison found no defective elements.
func (r *ComparisonResult) Passed() bool {
	return r.ShiftedCount == 0 && r.MissingCount == 0
}

// LoadImage reads a screenshot from disk.
func (c *Context) LoadImage(path string) (gocv.Mat, error) {
	return imageio.Load(path)
}

// DetectAndClassify finds and types the UI elements of a screenshot.
// When OCR is enabled, each element also gets its visible text.
func (c *Context) DetectAndClassify(img gocv.Mat) []element.Classified {
	detected := detect.Detect(img, c.detectOptions())
	classified := c.classifier.Classify(img, detected, img.Cols(), img.Rows())
	c.attachText(img, classified)
	return classified
}

// AlignAndDiff aligns the candidate to the reference and computes the
// difference mask. The caller owns both returned Mats.
func (c *Context) AlignAndDiff(reference, candidate gocv.Mat) (aligned gocv.Mat, mask gocv.Mat, score float64, featureAligned bool) {
	aligned, featureAligned = alignCandidate(reference, candidate)
	mask, score = diffmask.Compute(reference, aligned, c.cfg.Tolerance)
	return aligned, mask, score, featureAligned
}

// DiagnoseElements produces per-element verdicts from a difference
// mask, using the context's shift tolerance and thresholds.
func (c *Context) DiagnoseElements(elements []element.Classified, mask gocv.Mat) []element.Diagnostic {
	return diffmask.Diagnose(elements, mask, c.cfg.ShiftPx, c.cfg.Thresholds)
}

// Compare runs the full comparison: align, diff, detect elements on the
// reference, and diagnose each element against the difference mask.
func (c *Context) Compare(reference, candidate gocv.Mat) (*ComparisonResult, error) {
	if reference.Empty() || candidate.Empty() {
		return nil, fmt.Errorf("empty input image")
	}

	aligned, mask, score, featureAligned := c.AlignAndDiff(reference, candidate)
	defer aligned.Close()
	defer mask.Close()

	elements := c.DetectAndClassify(reference)
	diagnostics := c.DiagnoseElements(elements, mask)

	result := &ComparisonResult{
		Similarity:     score,
		MismatchRatio:  maskRatio(mask),
		FeatureAligned: featureAligned,
		Elements:       elements,
		Diagnostics:    diagnostics,
	}
	for _, d := range diagnostics {
		switch d.Status {
		case element.StatusOK:
			result.OKCount++
		case element.StatusShifted:
			result.ShiftedCount++
		case element.StatusMissing:
			result.MissingCount++
		}
	}
	if len(diagnostics) > 0 {
		result.Coverage = float64(result.OKCount) / float64(len(diagnostics))
	}

	log.Printf("pipeline: similarity %.4f, mismatch %.4f, elements %d (ok %d, shifted %d, missing %d)",
		result.Similarity, result.MismatchRatio, len(elements),
		result.OKCount, result.ShiftedCount, result.MissingCount)
	return result, nil
}

// CompareFiles loads both screenshots and compares them.
func (c *Context) CompareFiles(referencePath, candidatePath string) (*ComparisonResult, error) {
	reference, err := c.LoadImage(referencePath)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}
	defer reference.Close()

	candidate, err := c.LoadImage(candidatePath)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	defer candidate.Close()

	return c.Compare(reference, candidate)
}

// attachText runs OCR over each element region when an engine is
// available. Recognition failures leave the text empty.
func (c *Context) attachText(img gocv.Mat, elements []element.Classified) {
	if c.ocrEngine == nil {
		return
	}
	for i := range elements {
		rect := elements[i].Box.Pixels(img.Cols(), img.Rows())
		text, err := c.ocrEngine.RecognizeRegion(img, rect)
		if err != nil {
			log.Printf("pipeline: OCR failed for element %d: %v", i+1, err)
			continue
		}
		elements[i].Text = text
	}
}

func alignCandidate(reference, candidate gocv.Mat) (gocv.Mat, bool) {
	return alignment.Align(reference, candidate, alignment.DefaultOptions())
}

// maskRatio is the flagged-pixel fraction of a binary mask.
func maskRatio(mask gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}

