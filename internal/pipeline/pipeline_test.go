package pipeline

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
)

// referenceScreen draws a simple UI: a toolbar, a button and a text
// strip on a light background.
func referenceScreen() gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(245, 245, 245, 0), 600, 800, gocv.MatTypeCV8UC3)
	// toolbar
	gocv.Rectangle(&img, image.Rect(0, 0, 800, 36), color.RGBA{60, 60, 70, 0}, -1)
	// button
	gocv.Rectangle(&img, image.Rect(50, 50, 150, 90), color.RGBA{70, 120, 220, 0}, -1)
	gocv.Rectangle(&img, image.Rect(50, 50, 150, 90), color.RGBA{30, 30, 30, 0}, 2)
	// text strip
	gocv.Rectangle(&img, image.Rect(50, 150, 450, 180), color.RGBA{180, 180, 180, 0}, -1)
	return img
}

func testContext(t *testing.T) *Context {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UseLearned = false
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func TestCompareIdenticalScreens(t *testing.T) {
	ctx := testContext(t)
	ref := referenceScreen()
	defer ref.Close()
	cand := ref.Clone()
	defer cand.Close()

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		t.Fatal(err)
	}
	if result.Similarity < 0.98 {
		t.Errorf("similarity %.4f for identical screens, want >= 0.98", result.Similarity)
	}
	if result.MissingCount != 0 || result.ShiftedCount != 0 {
		t.Errorf("identical screens reported %d shifted, %d missing",
			result.ShiftedCount, result.MissingCount)
	}
	if !result.Passed() {
		t.Error("identical screens should pass")
	}
	if len(result.Elements) == 0 {
		t.Error("no elements detected on reference")
	}
	if len(result.Diagnostics) != len(result.Elements) {
		t.Errorf("got %d diagnostics for %d elements", len(result.Diagnostics), len(result.Elements))
	}
	if result.Coverage != 1.0 {
		t.Errorf("coverage %.3f with every element ok, want 1.0", result.Coverage)
	}
}

func TestCompareRemovedElement(t *testing.T) {
	ctx := testContext(t)
	ref := referenceScreen()
	defer ref.Close()

	cand := ref.Clone()
	defer cand.Close()
	// Paint the button over with background.
	gocv.Rectangle(&cand, image.Rect(48, 48, 152, 92), color.RGBA{245, 245, 245, 0}, -1)

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		t.Fatal(err)
	}
	if result.Similarity >= 0.995 {
		t.Errorf("similarity %.4f after removing an element, want a visible drop", result.Similarity)
	}
	if result.Passed() {
		t.Error("removed element should fail the comparison")
	}

	// The diagnostic for an element overlapping the removed button must
	// not be ok.
	found := false
	for i, d := range result.Diagnostics {
		el := result.Elements[i]
		r := el.Box.Pixels(800, 600)
		overlaps := r.X < 150 && r.X+r.Width > 50 && r.Y < 90 && r.Y+r.Height > 50
		if overlaps && d.Status != element.StatusOK {
			found = true
			break
		}
	}
	if !found {
		t.Error("no defect reported for the removed button region")
	}
	if result.Coverage >= 1.0 {
		t.Errorf("coverage %.3f with a defective element, want < 1.0", result.Coverage)
	}
	want := float64(result.OKCount) / float64(len(result.Diagnostics))
	if result.Coverage != want {
		t.Errorf("coverage %.3f, want ok fraction %.3f", result.Coverage, want)
	}
}

func TestCompareSmallShiftWithinTolerance(t *testing.T) {
	ctx := testContext(t)
	cfg := ctx.Config()
	if cfg.ShiftPx < 10 {
		t.Fatalf("default shift tolerance %d unexpectedly small", cfg.ShiftPx)
	}

	ref := referenceScreen()
	defer ref.Close()
	cand := ref.Clone()
	defer cand.Close()

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		t.Fatal(err)
	}
	if result.MismatchRatio > 0.01 {
		t.Errorf("mismatch ratio %.4f for identical screens, want ~0", result.MismatchRatio)
	}
}

func TestCompareRejectsEmptyInput(t *testing.T) {
	ctx := testContext(t)
	empty := gocv.NewMat()
	defer empty.Close()
	ref := referenceScreen()
	defer ref.Close()

	if _, err := ctx.Compare(ref, empty); err == nil {
		t.Error("empty candidate accepted")
	}
	if _, err := ctx.Compare(empty, ref); err == nil {
		t.Error("empty reference accepted")
	}
}

func TestCompareFilesMissingPath(t *testing.T) {
	ctx := testContext(t)
	if _, err := ctx.CompareFiles("/nonexistent/a.png", "/nonexistent/b.png"); err == nil {
		t.Error("missing files accepted")
	}
}

func TestCompareFilesRoundTrip(t *testing.T) {
	ctx := testContext(t)
	ref := referenceScreen()
	defer ref.Close()

	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.png")
	candPath := filepath.Join(dir, "cand.png")
	if ok := gocv.IMWrite(refPath, ref); !ok {
		t.Fatal("write reference image")
	}
	if ok := gocv.IMWrite(candPath, ref); !ok {
		t.Fatal("write candidate image")
	}

	result, err := ctx.CompareFiles(refPath, candPath)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed() {
		t.Error("identical files should pass")
	}
}

func TestDetectAndClassifyAssignsTypes(t *testing.T) {
	ctx := testContext(t)
	ref := referenceScreen()
	defer ref.Close()

	elements := ctx.DetectAndClassify(ref)
	if len(elements) == 0 {
		t.Fatal("no elements detected")
	}
	for i, el := range elements {
		if el.Type == "" {
			t.Errorf("element %d has empty type", i)
		}
		if el.ID != i+1 {
			t.Errorf("element %d has ID %d", i, el.ID)
		}
	}
}

func TestConfigNormalization(t *testing.T) {
	ctx, err := NewContext(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	cfg := ctx.Config()
	if cfg.Tolerance <= 0 || cfg.ShiftPx <= 0 || cfg.MinElements <= 0 {
		t.Errorf("zero config not normalized: %+v", cfg)
	}
}

func TestContextMissingModelsDegrade(t *testing.T) {
	cfg := DefaultConfig().
		WithDetectorModel(filepath.Join(t.TempDir(), "missing.onnx"), nil).
		WithClassifierModel(filepath.Join(t.TempDir(), "missing.json"))

	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("missing optional models should not fail context creation: %v", err)
	}
	defer ctx.Close()

	ref := referenceScreen()
	defer ref.Close()
	if elements := ctx.DetectAndClassify(ref); len(elements) == 0 {
		t.Error("detection should still work without models")
	}
}

func TestCompareShiftedElement(t *testing.T) {
	ctx := testContext(t)
	ref := referenceScreen()
	defer ref.Close()

	cand := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(245, 245, 245, 0), 600, 800, gocv.MatTypeCV8UC3)
	defer cand.Close()
	gocv.Rectangle(&cand, image.Rect(0, 0, 800, 36), color.RGBA{60, 60, 70, 0}, -1)
	// Button moved 30px right, beyond the 18px shift tolerance.
	gocv.Rectangle(&cand, image.Rect(80, 50, 180, 90), color.RGBA{70, 120, 220, 0}, -1)
	gocv.Rectangle(&cand, image.Rect(80, 50, 180, 90), color.RGBA{30, 30, 30, 0}, 2)
	gocv.Rectangle(&cand, image.Rect(50, 150, 450, 180), color.RGBA{180, 180, 180, 0}, -1)

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed() {
		t.Error("element shifted beyond tolerance should fail the comparison")
	}
}

func TestCompareShiftedElementWithinTolerance(t *testing.T) {
	// Same 30px button shift as above, but with the shift tolerance
	// raised past the displacement the padded sampling window absorbs
	// it and every element stays ok.
	cfg := DefaultConfig().WithShiftPx(45)
	cfg.UseLearned = false
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	ref := referenceScreen()
	defer ref.Close()

	cand := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(245, 245, 245, 0), 600, 800, gocv.MatTypeCV8UC3)
	defer cand.Close()
	gocv.Rectangle(&cand, image.Rect(0, 0, 800, 36), color.RGBA{60, 60, 70, 0}, -1)
	gocv.Rectangle(&cand, image.Rect(80, 50, 180, 90), color.RGBA{70, 120, 220, 0}, -1)
	gocv.Rectangle(&cand, image.Rect(80, 50, 180, 90), color.RGBA{30, 30, 30, 0}, 2)
	gocv.Rectangle(&cand, image.Rect(50, 150, 450, 180), color.RGBA{180, 180, 180, 0}, -1)

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		t.Fatal(err)
	}
	if result.ShiftedCount != 0 || result.MissingCount != 0 {
		t.Errorf("got %d shifted, %d missing with a 45px tolerance, want none",
			result.ShiftedCount, result.MissingCount)
	}
	if !result.Passed() {
		t.Error("shift inside the tolerance window should pass the comparison")
	}
	if result.Coverage != 1.0 {
		t.Errorf("coverage %.3f with every element ok, want 1.0", result.Coverage)
	}
}
