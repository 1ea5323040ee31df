// Package element defines the UI element model shared by the detection,
// classification and diff-analysis stages.
package element

import (
	"screendiff/pkg/geometry"
)

// Type is the semantic kind of a detected UI element.
type Type string

const (
	TypeButton  Type = "button"
	TypeInput   Type = "input"
	TypeLabel   Type = "label"
	TypeImage   Type = "image"
	TypeLink    Type = "link"
	TypeUnknown Type = "unknown"
)

// Types lists every known element type.
func Types() []Type {
	return []Type{TypeButton, TypeInput, TypeLabel, TypeImage, TypeLink, TypeUnknown}
}

// Source records which stage decided an element's type. Precedence when
// resolving a final type is Detector > Model > Heuristic > Default.
type Source int

const (
	SourceDefault   Source = iota // nothing matched, fell through to unknown
	SourceHeuristic               // rule-based visual heuristics
	SourceModel                   // trained feature classifier
	SourceDetector                // class label supplied by the learned detector
)

func (s Source) String() string {
	switch s {
	case SourceDetector:
		return "detector"
	case SourceModel:
		return "model"
	case SourceHeuristic:
		return "heuristic"
	default:
		return "default"
	}
}

// Detected is the raw output of a detection stage, before classification.
type Detected struct {
	Box        geometry.Box `json:"bbox"`
	AreaPx     float64      `json:"area"`       // contour or box area in pixels
	Confidence float64      `json:"confidence"` // detection confidence in [0,1]

	// Label carries a class name supplied by the learned detector, if
	// any. Heuristic and grid stages leave it empty.
	Label           string  `json:"class_name,omitempty"`
	LabelConfidence float64 `json:"-"`
}

// Classified is a detected element with an assigned semantic type.
// Created once per reference image during analysis; immutable afterward.
type Classified struct {
	Detected

	ID             int     `json:"id"`
	Type           Type    `json:"type"`
	TypeConfidence float64 `json:"type_confidence"`
	Source         Source  `json:"-"`

	// Text is the OCR-extracted interior text, when OCR is enabled and
	// available. Empty otherwise.
	Text string `json:"text,omitempty"`
}

// Status is the per-element verdict of a comparison.
type Status string

const (
	StatusOK      Status = "ok"
	StatusShifted Status = "shifted"
	StatusMissing Status = "missing"
)

// Diagnostic describes how one element fared in a comparison.
type Diagnostic struct {
	ElementID     int     `json:"element_id"`
	MismatchRatio float64 `json:"mismatch_ratio"`
	DiffPixels    int     `json:"diff_pixels"`
	Status        Status  `json:"status"`
}
