package diffmask

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

// newScreenshot builds a dark gray BGR screenshot with an optional white
// rectangle, mimicking a single UI element on a flat background.
func newScreenshot(w, h int, rect *image.Rectangle) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), h, w, gocv.MatTypeCV8UC3)
	if rect != nil {
		gocv.Rectangle(&img, *rect, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	}
	return img
}

func uniformMask(w, h int, value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), h, w, gocv.MatTypeCV8U)
}

func TestComputeIdenticalImages(t *testing.T) {
	rect := image.Rect(50, 50, 150, 90)
	ref := newScreenshot(800, 600, &rect)
	defer ref.Close()

	mask, score := Compute(ref, ref, DefaultTolerance)
	defer mask.Close()

	if score < 0.99 {
		t.Errorf("self-compare similarity = %f, want ~1.0", score)
	}

	nonzero := gocv.CountNonZero(mask)
	if limit := 800 * 600 / 1000; nonzero > limit {
		t.Errorf("self-compare mask has %d nonzero pixels, want <= %d", nonzero, limit)
	}
}

func TestComputeShiftedRectangle(t *testing.T) {
	refRect := image.Rect(50, 50, 150, 90)
	candRect := image.Rect(80, 50, 180, 90) // shifted 30px right
	ref := newScreenshot(800, 600, &refRect)
	defer ref.Close()
	cand := newScreenshot(800, 600, &candRect)
	defer cand.Close()

	mask, score := Compute(ref, cand, DefaultTolerance)
	defer mask.Close()

	if score >= 1.0 {
		t.Errorf("similarity = %f for differing images", score)
	}
	if gocv.CountNonZero(mask) == 0 {
		t.Error("expected nonzero diff mask for shifted rectangle")
	}

	// The diff should be localized around the rectangle, not global.
	total := 800 * 600
	if nonzero := gocv.CountNonZero(mask); nonzero > total/4 {
		t.Errorf("diff mask covers %d/%d pixels, expected a localized change", nonzero, total)
	}
}

func testElements() []element.Classified {
	return []element.Classified{
		{ID: 1, Detected: element.Detected{Box: geometry.Box{X: 0.0625, Y: 0.083, W: 0.125, H: 0.067}}},
		{ID: 2, Detected: element.Detected{Box: geometry.Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}}},
		{ID: 3, Detected: element.Detected{Box: geometry.Box{X: 0.1, Y: 0.7, W: 0.3, H: 0.1}}},
	}
}

func TestDiagnoseBlankMask(t *testing.T) {
	mask := uniformMask(800, 600, 0)
	defer mask.Close()

	diags := Diagnose(testElements(), mask, DefaultShiftPx, DefaultThresholds())
	if len(diags) != 3 {
		t.Fatalf("got %d diagnostics, want 3", len(diags))
	}
	for _, d := range diags {
		if d.Status != element.StatusOK {
			t.Errorf("element %d: status = %s on blank mask, want ok", d.ElementID, d.Status)
		}
		if d.MismatchRatio != 0 {
			t.Errorf("element %d: mismatch ratio = %f on blank mask", d.ElementID, d.MismatchRatio)
		}
	}
}

func TestDiagnoseSaturatedMask(t *testing.T) {
	mask := uniformMask(800, 600, 255)
	defer mask.Close()

	diags := Diagnose(testElements(), mask, DefaultShiftPx, DefaultThresholds())
	for _, d := range diags {
		if d.Status != element.StatusMissing {
			t.Errorf("element %d: status = %s on saturated mask, want missing", d.ElementID, d.Status)
		}
	}
}

func TestDiagnoseLocalizedDiff(t *testing.T) {
	// Fill roughly 40% of element 2's box only: enough for shifted,
	// below the missing ratio.
	mask := uniformMask(800, 600, 0)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(400, 300, 464, 420), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	diags := Diagnose(testElements(), mask, 0, DefaultThresholds())
	byID := map[int]element.Diagnostic{}
	for _, d := range diags {
		byID[d.ElementID] = d
	}

	if got := byID[2].Status; got != element.StatusShifted {
		t.Errorf("element 2: status = %s (ratio %f), want shifted", got, byID[2].MismatchRatio)
	}
	if got := byID[1].Status; got != element.StatusOK {
		t.Errorf("element 1: status = %s, want ok (diff is elsewhere)", got)
	}
}

func TestDiagnoseShiftWithinTolerance(t *testing.T) {
	// A 100x40 element moved 30px right leaves two 30px diff strips:
	// the vacated left edge inside the old box and the newly covered
	// area to its right.
	mask := uniformMask(800, 600, 0)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(200, 200, 230, 240), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	gocv.Rectangle(&mask, image.Rect(300, 200, 330, 240), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	elems := []element.Classified{{
		ID:       1,
		Detected: element.Detected{Box: geometry.NewBoxFromPixels(geometry.RectInt{X: 200, Y: 200, Width: 100, Height: 40}, 800, 600)},
	}}

	// With the padding window at the shift distance, the diff strips are
	// diluted across the padded region and the element stays ok.
	diags := Diagnose(elems, mask, 30, DefaultThresholds())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Status != element.StatusOK {
		t.Errorf("status = %s (ratio %f) with 30px tolerance, want ok",
			diags[0].Status, diags[0].MismatchRatio)
	}

	// Without padding the vacated strip dominates the box and the
	// element is flagged.
	diags = Diagnose(elems, mask, 0, DefaultThresholds())
	if diags[0].Status == element.StatusOK {
		t.Errorf("status = ok (ratio %f) with no tolerance, want a defect",
			diags[0].MismatchRatio)
	}
}

func TestDiagnoseEmptyInputs(t *testing.T) {
	mask := uniformMask(100, 100, 0)
	defer mask.Close()

	if diags := Diagnose(nil, mask, 0, DefaultThresholds()); diags != nil {
		t.Errorf("expected nil diagnostics for no elements, got %v", diags)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if diags := Diagnose(testElements(), empty, 0, DefaultThresholds()); diags != nil {
		t.Errorf("expected nil diagnostics for empty mask, got %v", diags)
	}
}
