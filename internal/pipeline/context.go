package pipeline

import (
	"fmt"
	"log"

	"screendiff/internal/classify"
	"screendiff/internal/detect"
	"screendiff/internal/ocr"
)

// Context holds the long-lived resources of a comparison pipeline: the
// optional neural detector, the optional trained classifier, and the
// optional OCR engine. Create one per process and Close it when done.
type Context struct {
	cfg Config

	detector   *detect.NetDetector
	classifier classify.Classifier
	ocrEngine  *ocr.Engine
}

// NewContext initializes pipeline resources from the configuration.
// Optional resources that fail to load are logged and disabled rather
// than failing the whole pipeline.
func NewContext(cfg Config) (*Context, error) {
	cfg = cfg.normalized()
	ctx := &Context{cfg: cfg}

	if cfg.UseLearned && cfg.DetectorModelPath != "" {
		det, err := detect.LoadNet(cfg.DetectorModelPath, cfg.DetectorClasses)
		if err != nil {
			log.Printf("pipeline: neural detector unavailable: %v", err)
		} else {
			ctx.detector = det
		}
	}

	if cfg.ClassifierModelPath != "" {
		model, err := classify.LoadModel(cfg.ClassifierModelPath)
		if err != nil {
			log.Printf("pipeline: trained classifier unavailable: %v", err)
		} else {
			ctx.classifier.Model = model
		}
	}

	if cfg.EnableOCR {
		engine, err := ocr.NewEngine()
		if err != nil {
			log.Printf("pipeline: OCR unavailable: %v", err)
		} else {
			ctx.ocrEngine = engine
		}
	}

	return ctx, nil
}

// Config returns the normalized configuration the context was built
// with.
func (c *Context) Config() Config {
	return c.cfg
}

// Close releases the detector and OCR resources.
func (c *Context) Close() error {
	var firstErr error
	if c.detector != nil {
		if err := c.detector.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close detector: %w", err)
		}
		c.detector = nil
	}
	if c.ocrEngine != nil {
		if err := c.ocrEngine.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close OCR engine: %w", err)
		}
		c.ocrEngine = nil
	}
	return firstErr
}

// detectOptions assembles the detection cascade options.
func (c *Context) detectOptions() detect.Options {
	opts := detect.DefaultOptions()
	opts.LearnedConfidence = c.cfg.LearnedConfidence
	opts.MinElements = c.cfg.MinElements
	if c.cfg.UseLearned {
		opts.Learned = c.detector
	}
	return opts
}
