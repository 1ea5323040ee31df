package detect

import (
	"sort"

	"screendiff/internal/element"
)

// Overlap thresholds for collapsing near-duplicate detections.
const (
	duplicateIoU   = 0.35 // phase 1: drop the lower-confidence of two overlapping boxes
	mergeIoU       = 0.6  // phase 2: union-merge heavily overlapping boxes
	mergeContained = 0.8  // phase 2: union-merge when one box mostly covers the smaller
)

// RemoveDuplicates keeps, in descending confidence order, only boxes
// that do not overlap an already-accepted box by more than duplicateIoU.
func RemoveDuplicates(elements []element.Detected) []element.Detected {
	if len(elements) < 2 {
		return elements
	}

	sorted := make([]element.Detected, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	filtered := make([]element.Detected, 0, len(sorted))
	for _, elem := range sorted {
		duplicate := false
		for _, kept := range filtered {
			if elem.Box.IoU(kept.Box) > duplicateIoU {
				duplicate = true
				break
			}
		}
		if !duplicate {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

// MergeOverlapping repeatedly unions pairs of boxes that overlap by more
// than mergeIoU, or where the intersection covers more than
// mergeContained of the smaller box, until no pair qualifies. This
// reassembles fragmentary partial detections of a single element that
// the duplicate filter would otherwise discard piecemeal.
func MergeOverlapping(elements []element.Detected, imgW, imgH int) []element.Detected {
	if len(elements) < 2 {
		return elements
	}

	merged := make([]element.Detected, len(elements))
	copy(merged, elements)

	changed := true
	for changed {
		changed = false
		result := make([]element.Detected, 0, len(merged))
		skip := make(map[int]bool)

		for i := 0; i < len(merged); i++ {
			if skip[i] {
				continue
			}
			base := merged[i]
			for j := i + 1; j < len(merged); j++ {
				if skip[j] {
					continue
				}
				other := merged[j]

				iou := base.Box.IoU(other.Box)
				containment := base.Box.Containment(other.Box)
				if iou <= mergeIoU && containment <= mergeContained {
					continue
				}

				union := base.Box.Union(other.Box).Clamp()
				confidence := base.Confidence
				if other.Confidence > confidence {
					confidence = other.Confidence
				}
				base = element.Detected{
					Box:             union,
					AreaPx:          union.Area() * float64(imgW) * float64(imgH),
					Confidence:      confidence,
					Label:           base.Label,
					LabelConfidence: base.LabelConfidence,
				}
				skip[j] = true
				changed = true
			}
			result = append(result, base)
		}
		merged = result
	}
	return merged
}

// MergeAndDedupe combines two detection sets, removing duplicates and
// union-merging fragments.
func MergeAndDedupe(base, extra []element.Detected, imgW, imgH int) []element.Detected {
	if len(extra) == 0 {
		return base
	}
	combined := make([]element.Detected, 0, len(base)+len(extra))
	combined = append(combined, base...)
	combined = append(combined, extra...)
	combined = RemoveDuplicates(combined)
	return MergeOverlapping(combined, imgW, imgH)
}
