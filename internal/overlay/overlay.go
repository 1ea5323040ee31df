// Package overlay renders detection and comparison results onto
// screenshots for visual inspection.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"screendiff/internal/element"
)

// typeHues assigns each element type a fixed hue on the HCL wheel so
// overlays stay readable regardless of the underlying screenshot.
var typeHues = map[element.Type]float64{
	element.TypeButton:  25,  // orange
	element.TypeInput:   210, // blue
	element.TypeLabel:   120, // green
	element.TypeImage:   280, // purple
	element.TypeLink:    180, // cyan
	element.TypeUnknown: 0,   // red-ish gray
}

// statusColors are the verdict colors: green ok, yellow shifted, red
// missing.
var statusColors = map[element.Status]color.RGBA{
	element.StatusOK:      {R: 0, G: 200, B: 0},
	element.StatusShifted: {R: 230, G: 200, B: 0},
	element.StatusMissing: {R: 230, G: 0, B: 0},
}

// TypeColor returns the drawing color for an element type. gocv's
// drawing functions take color.RGBA directly and handle the channel
// order themselves.
func TypeColor(t element.Type) color.RGBA {
	hue, ok := typeHues[t]
	if !ok {
		hue = 0
	}
	c := colorful.Hcl(hue, 0.7, 0.5).Clamped()
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b}
}

// DrawElements annotates a copy of the screenshot with one labeled box
// per element, colored by type.
func DrawElements(img gocv.Mat, elements []element.Classified) gocv.Mat {
	out := img.Clone()
	w := img.Cols()
	h := img.Rows()
	for _, el := range elements {
		rect := el.Box.Pixels(w, h)
		c := TypeColor(el.Type)
		gocv.Rectangle(&out, toImageRect(rect.X, rect.Y, rect.Width, rect.Height), c, 2)
		label := fmt.Sprintf("#%d %s %.2f", el.ID, el.Type, el.Confidence)
		drawLabel(&out, label, rect.X, rect.Y, c)
	}
	return out
}

// DrawDiagnostics annotates a copy of the screenshot with per-element
// verdicts, colored by status.
func DrawDiagnostics(img gocv.Mat, elements []element.Classified, diagnostics []element.Diagnostic) gocv.Mat {
	out := img.Clone()
	w := img.Cols()
	h := img.Rows()
	for i, d := range diagnostics {
		if i >= len(elements) {
			break
		}
		el := elements[i]
		rect := el.Box.Pixels(w, h)
		c, ok := statusColors[d.Status]
		if !ok {
			c = color.RGBA{200, 200, 200, 0}
		}
		gocv.Rectangle(&out, toImageRect(rect.X, rect.Y, rect.Width, rect.Height), c, 2)
		label := fmt.Sprintf("#%d %s %s", el.ID, el.Type, d.Status)
		drawLabel(&out, label, rect.X, rect.Y, c)
	}
	return out
}

func drawLabel(img *gocv.Mat, text string, x, y int, c color.RGBA) {
	origin := image.Pt(x, y-4)
	if origin.Y < 12 {
		origin.Y = y + 14
	}
	gocv.PutText(img, text, origin, gocv.FontHersheySimplex, 0.4, c, 1)
}

func toImageRect(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
