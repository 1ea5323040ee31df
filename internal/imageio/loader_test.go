package imageio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestLoadPNG(t *testing.T) {
	path := writeTestPNG(t, 64, 48)

	mat, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer mat.Close()

	if mat.Cols() != 64 || mat.Rows() != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", mat.Cols(), mat.Rows())
	}
	if mat.Channels() != 3 {
		t.Errorf("channels = %d, want 3 (BGR)", mat.Channels())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("error type = %T, want *DecodeError", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	_, err := Load(path)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError for corrupt file, got %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError for empty path, got %v", err)
	}
}
