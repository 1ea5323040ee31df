package overlay

import (
	"testing"

	"gocv.io/x/gocv"

	"screendiff/internal/element"
	"screendiff/pkg/geometry"
)

func TestTypeColorNaturalChannels(t *testing.T) {
	// Button maps to an orange hue: red must dominate blue. A swapped
	// channel order would invert that.
	c := TypeColor(element.TypeButton)
	if c.R <= c.B {
		t.Errorf("button color R=%d B=%d, want red-dominant orange", c.R, c.B)
	}

	// Input maps to blue: blue must dominate red.
	c = TypeColor(element.TypeInput)
	if c.B <= c.R {
		t.Errorf("input color R=%d B=%d, want blue-dominant", c.R, c.B)
	}
}

func TestTypeColorDistinctPerType(t *testing.T) {
	seen := make(map[[3]uint8]element.Type)
	for _, typ := range element.Types() {
		c := TypeColor(typ)
		key := [3]uint8{c.R, c.G, c.B}
		if prev, dup := seen[key]; dup {
			t.Errorf("types %s and %s share color %v", prev, typ, key)
		}
		seen[key] = typ
	}
}

func TestStatusColorChannels(t *testing.T) {
	missing := statusColors[element.StatusMissing]
	if missing.R <= missing.B || missing.R <= missing.G {
		t.Errorf("missing color %+v, want red-dominant", missing)
	}
	ok := statusColors[element.StatusOK]
	if ok.G <= ok.R || ok.G <= ok.B {
		t.Errorf("ok color %+v, want green-dominant", ok)
	}
	shifted := statusColors[element.StatusShifted]
	if shifted.B >= shifted.R || shifted.B >= shifted.G {
		t.Errorf("shifted color %+v, want yellow (low blue)", shifted)
	}
}

func TestDrawElementsLeavesInputUntouched(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 200, 300, gocv.MatTypeCV8UC3)
	defer img.Close()

	elements := []element.Classified{{
		Detected: element.Detected{Box: geometry.Box{X: 0.2, Y: 0.2, W: 0.3, H: 0.3}},
		ID:       1,
		Type:     element.TypeButton,
	}}
	out := DrawElements(img, elements)
	defer out.Close()

	if gocv.CountNonZero(diffChannel(img, out)) == 0 {
		t.Error("overlay drew nothing")
	}
	// Source must be a pristine white image still.
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) != 200*300 {
		t.Error("source image was modified")
	}
}

func diffChannel(a, b gocv.Mat) gocv.Mat {
	grayA := gocv.NewMat()
	defer grayA.Close()
	gocv.CvtColor(a, &grayA, gocv.ColorBGRToGray)
	grayB := gocv.NewMat()
	defer grayB.Close()
	gocv.CvtColor(b, &grayB, gocv.ColorBGRToGray)
	diff := gocv.NewMat()
	gocv.AbsDiff(grayA, grayB, &diff)
	return diff
}
