package classify

import (
	"math"
	"strings"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
)

// trustedLabelConfidence is the threshold above which a detector's own
// class label wins outright.
const trustedLabelConfidence = 0.5

// detectorVocabulary maps detector class names onto the element types
// the rest of the system understands.
var detectorVocabulary = map[string]element.Type{
	"button": element.TypeButton,
	"input":  element.TypeInput,
	"text":   element.TypeLabel,
	"label":  element.TypeLabel,
	"image":  element.TypeImage,
	"link":   element.TypeLink,
	"icon":   element.TypeImage,
}

// Classifier assigns element types. Model is optional; when nil or
// untrained only detector labels and heuristics are used.
type Classifier struct {
	Model *Model
}

// Classify types every detected element on a BGR screenshot. Elements
// come back with sequential IDs and a final confidence that averages
// detection and classification scores.
func (c *Classifier) Classify(img gocv.Mat, detected []element.Detected, imgW, imgH int) []element.Classified {
	out := make([]element.Classified, 0, len(detected))
	for i, det := range detected {
		cl := c.classifyOne(img, det, imgW, imgH)
		cl.ID = i + 1
		out = append(out, cl)
	}
	return out
}

func (c *Classifier) classifyOne(img gocv.Mat, det element.Detected, imgW, imgH int) element.Classified {
	cl := element.Classified{
		Detected: det,
		Type:     element.TypeUnknown,
		Source:   element.SourceDefault,
	}

	// 1. Detector class label, remapped through the vocabulary.
	if det.Label != "" && det.Label != string(element.TypeUnknown) {
		if t, ok := detectorVocabulary[strings.ToLower(det.Label)]; ok {
			cl.Type = t
		} else {
			cl.Type = element.Type(strings.ToLower(det.Label))
		}
		cl.TypeConfidence = det.LabelConfidence
		cl.Source = element.SourceDetector
	}

	// 2. Model or heuristics when the label is missing or weak.
	if cl.Type == element.TypeUnknown || cl.TypeConfidence < trustedLabelConfidence {
		if c.Model.Trained() {
			t, conf := c.Model.Predict(ExtractFeatures(img, det.Box, imgW, imgH))
			if conf > cl.TypeConfidence {
				cl.Type = t
				cl.TypeConfidence = conf
				cl.Source = element.SourceModel
			}
		} else {
			t, conf := Heuristic(img, det.Box, imgW, imgH)
			if conf > cl.TypeConfidence {
				cl.Type = t
				cl.TypeConfidence = conf
				cl.Source = element.SourceHeuristic
			}
		}
	}

	correctByShape(&cl, imgW, imgH)

	// Blend detection and type confidence into the reported score.
	cl.Confidence = (det.Confidence + cl.TypeConfidence) / 2
	return cl
}

// correctByShape applies final shape-based corrections that override
// whatever source produced the type. Very wide flat "buttons" are
// almost always inputs; tiny squares labelled as text are buttons.
func correctByShape(cl *element.Classified, imgW, imgH int) {
	rect := cl.Box.Pixels(imgW, imgH)
	aspect := float64(rect.Width) / math.Max(float64(rect.Height), 1)
	relArea := float64(rect.Area()) / float64(imgW*imgH)
	isSmall := relArea < smallRelArea

	if cl.Type == element.TypeButton && aspect > 5.0 && rect.Height < 40 {
		cl.Type = element.TypeInput
		cl.TypeConfidence = math.Max(cl.TypeConfidence, 0.75)
		return
	}

	if (cl.Type == element.TypeLabel || cl.Type == element.TypeUnknown) &&
		aspect >= 0.7 && aspect <= 1.3 && isSmall {
		cl.Type = element.TypeButton
		cl.TypeConfidence = math.Max(cl.TypeConfidence, 0.7)
		return
	}

	if cl.Type == element.TypeUnknown {
		if aspect > 1.5 && relArea >= 0.0005 && relArea <= 0.15 {
			if aspect > 2.0 {
				cl.Type = element.TypeLabel
				cl.TypeConfidence = 0.65
			} else {
				cl.Type = element.TypeLabel
				cl.TypeConfidence = 0.6
			}
		}
		// Button shapes win over the label assignment above: a box this
		// regular is a control even when text-like in aspect.
		if aspect >= 0.5 && aspect <= 3.0 && relArea >= 0.0005 && relArea <= 0.1 {
			cl.Type = element.TypeButton
			cl.TypeConfidence = 0.6
		}
	}
}
