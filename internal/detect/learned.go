package detect

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

// netInputSize is the square input resolution of the single-shot
// detector.
const netInputSize = 640

// NetDetector wraps a single-shot neural detector loaded through
// OpenCV's DNN module. It is consumed as a black-box scorer: the model
// file is whatever the surrounding system trained (ONNX export).
//
// A NetDetector is immutable after load and safe for concurrent readers.
type NetDetector struct {
	net     gocv.Net
	classes []string
}

// LoadNet reads a detector model from disk. classNames maps class
// indices to labels; it may be empty, in which case labels are reported
// as "class_N".
func LoadNet(modelPath string, classNames []string) (*NetDetector, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("empty model path")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("read model %s: empty network", modelPath)
	}
	return &NetDetector{net: net, classes: classNames}, nil
}

// Close releases the network.
func (d *NetDetector) Close() error {
	return d.net.Close()
}

// Detect runs the network over a BGR image and returns detections above
// the confidence threshold, in unit-relative coordinates with the
// detector's class labels attached. Overlap suppression is left to the
// shared dedup/merge stage.
func (d *NetDetector) Detect(img gocv.Mat, confThreshold float64) ([]element.Detected, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := img.Cols()
	imgH := img.Rows()

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Point{X: netInputSize, Y: netInputSize},
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	raw, err := d.parseOutput(output, confThreshold)
	if err != nil {
		return nil, err
	}

	elements := make([]element.Detected, 0, len(raw))
	for _, det := range raw {
		rect := scaleToImage(det, imgW, imgH)
		rect = correctDetectorBias(rect, imgW, imgH)
		rect = rect.Intersect(imgW, imgH)
		if rect.Width < 1 || rect.Height < 1 {
			continue
		}
		elements = append(elements, element.Detected{
			Box:             geometry.NewBoxFromPixels(rect, imgW, imgH).Clamp(),
			AreaPx:          float64(rect.Area()),
			Confidence:      det.score,
			Label:           d.className(det.class),
			LabelConfidence: det.score,
		})
	}
	return elements, nil
}

// rawDetection is one decoded output row in network-input coordinates
// (center x/y plus width/height).
type rawDetection struct {
	cx, cy, w, h float64
	score        float64
	class        int
}

// parseOutput decodes the two common single-shot output layouts:
// [1, N, 5+nc] (per-row objectness followed by class scores) and the
// transposed [1, 4+nc, N] (class scores only). Anything else is
// reported as an error so the caller can fall back to heuristics.
func (d *NetDetector) parseOutput(output gocv.Mat, confThreshold float64) ([]rawDetection, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unsupported output shape %v", dims)
	}

	var detections []rawDetection

	if dims[1] > dims[2] {
		// [1, N, 5+nc]: rows are detections
		rows := dims[1]
		cols := dims[2]
		if cols < 6 {
			return nil, fmt.Errorf("unsupported output row width %d", cols)
		}
		flat := output.Reshape(1, rows)
		defer flat.Close()

		for i := 0; i < rows; i++ {
			objectness := float64(flat.GetFloatAt(i, 4))
			if objectness < confThreshold {
				continue
			}
			classID, classScore := argmaxRow(flat, i, 5, cols)
			score := objectness * classScore
			if score < confThreshold {
				continue
			}
			detections = append(detections, rawDetection{
				cx:    float64(flat.GetFloatAt(i, 0)),
				cy:    float64(flat.GetFloatAt(i, 1)),
				w:     float64(flat.GetFloatAt(i, 2)),
				h:     float64(flat.GetFloatAt(i, 3)),
				score: score,
				class: classID,
			})
		}
		return detections, nil
	}

	// [1, 4+nc, N]: columns are detections
	rows := dims[1]
	cols := dims[2]
	if rows < 5 {
		return nil, fmt.Errorf("unsupported output column height %d", rows)
	}
	flat := output.Reshape(1, rows)
	defer flat.Close()

	for j := 0; j < cols; j++ {
		classID := 0
		classScore := 0.0
		for c := 4; c < rows; c++ {
			if s := float64(flat.GetFloatAt(c, j)); s > classScore {
				classScore = s
				classID = c - 4
			}
		}
		if classScore < confThreshold {
			continue
		}
		detections = append(detections, rawDetection{
			cx:    float64(flat.GetFloatAt(0, j)),
			cy:    float64(flat.GetFloatAt(1, j)),
			w:     float64(flat.GetFloatAt(2, j)),
			h:     float64(flat.GetFloatAt(3, j)),
			score: classScore,
			class: classID,
		})
	}
	return detections, nil
}

func argmaxRow(flat gocv.Mat, row, from, to int) (int, float64) {
	bestIdx := 0
	bestScore := 0.0
	for c := from; c < to; c++ {
		if s := float64(flat.GetFloatAt(row, c)); s > bestScore {
			bestScore = s
			bestIdx = c - from
		}
	}
	return bestIdx, bestScore
}

func (d *NetDetector) className(id int) string {
	if id >= 0 && id < len(d.classes) {
		return d.classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// scaleToImage maps a center-format detection from network-input
// coordinates to a pixel rectangle on the original image.
func scaleToImage(det rawDetection, imgW, imgH int) geometry.RectInt {
	sx := float64(imgW) / netInputSize
	sy := float64(imgH) / netInputSize
	x := (det.cx - det.w/2) * sx
	y := (det.cy - det.h/2) * sy
	w := det.w * sx
	h := det.h * sy
	return geometry.RectInt{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
}

// correctDetectorBias nudges detections right and down to compensate for
// the detector's systematic up-left offset; small boxes drift more.
func correctDetectorBias(r geometry.RectInt, imgW, imgH int) geometry.RectInt {
	var dx, dy int
	if r.Width < 50 || r.Height < 50 {
		dx = clampInt(int(float64(r.Width)*0.08), 2, 4)
		dy = clampInt(int(float64(r.Height)*0.06), 2, 3)
	} else {
		dx = clampInt(int(float64(r.Width)*0.015), 1, 3)
		dy = clampInt(int(float64(r.Height)*0.01), 1, 2)
	}
	r.X = min(r.X+dx, imgW-1)
	r.Y = min(r.Y+dy, imgH-1)
	return r
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
