// Package imageio decodes screenshot files into OpenCV matrices.
//
// The primary decode path is OpenCV's imread. Files OpenCV cannot read
// (notably WebP screenshots from browser capture tools) fall back to the
// Go image decoders registered below and are re-encoded into the
// pipeline's native BGR channel order.
package imageio

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"
)

// DecodeError indicates an image file could not be decoded by any
// available path. It is the only fatal error class the pipeline surfaces
// for image input.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s: unsupported or corrupt image", e.Path)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Load decodes the image at path into a 3-channel BGR matrix.
// Either a fully decoded image is returned or a *DecodeError; there is
// no partial success. The caller owns the returned Mat.
func Load(path string) (gocv.Mat, error) {
	if path == "" {
		return gocv.Mat{}, &DecodeError{Path: path, Err: fmt.Errorf("empty path")}
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	// imread failed; try the Go decoders for formats OpenCV lacks.
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return gocv.Mat{}, &DecodeError{Path: path, Err: err}
	}

	out, err := toBGR(img)
	if err != nil {
		return gocv.Mat{}, &DecodeError{Path: path, Err: err}
	}

	log.Printf("imageio: loaded %s via Go %s decoder fallback", path, format)
	return out, nil
}

// toBGR converts a decoded Go image into a 3-channel BGR Mat.
func toBGR(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return gocv.Mat{}, fmt.Errorf("empty image bounds %v", bounds)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		converted := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(converted, converted.Bounds(), img, bounds.Min, draw.Src)
		rgba = converted
	}

	mat, err := gocv.NewMatFromBytes(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("mat from pixels: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}
