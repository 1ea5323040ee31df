// Package ocr extracts visible text from UI element regions. Text is a
// secondary signal; callers treat OCR failures as "no text" rather than
// errors.
package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"screendiff/pkg/geometry"
)

// minRegionSide is the smallest region worth sending to the recognizer;
// anything smaller is icon-sized and yields noise.
const minRegionSide = 8

// Engine wraps a Tesseract client configured for screen text.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates an OCR engine. Fails when the Tesseract runtime or
// its language data is not installed.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// RecognizeRegion performs OCR on one region of a BGR screenshot and
// returns the whitespace-normalized text.
func (e *Engine) RecognizeRegion(img gocv.Mat, bounds geometry.RectInt) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	rect := bounds.Intersect(img.Cols(), img.Rows())
	if rect.Width < minRegionSide || rect.Height < minRegionSide {
		return "", nil
	}

	region := img.Region(image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height))
	defer region.Close()

	processed := preprocess(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	// Element regions hold a single line or block of text.
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set page segmentation: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// preprocess upscales small regions and boosts contrast so anti-aliased
// screen text survives binarization inside Tesseract.
func preprocess(region gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if region.Channels() == 3 {
		gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	} else {
		region.CopyTo(&gray)
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	if gray.Rows() < 32 {
		scale := 32.0 / float64(gray.Rows())
		gocv.Resize(gray, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		gray.CopyTo(&scaled)
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()

	out := gocv.NewMat()
	clahe.Apply(scaled, &out)
	return out
}
