package mask

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// solidImage returns a w x h image filled with c.
func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestDecodeAllBlackIsAllObstacle(t *testing.T) {
	r := encodePNG(t, solidImage(32, 32, color.Black))
	m, err := Decode(r, 16, 16, DefaultThreshold)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m) != 16 || len(m[0]) != 16 {
		t.Fatalf("mask dimensions = %dx%d, want 16x16", len(m[0]), len(m))
	}
	if got := Count(m); got != 256 {
		t.Errorf("obstacle count = %d, want 256", got)
	}
}

func TestDecodeAllWhiteIsAllFluid(t *testing.T) {
	r := encodePNG(t, solidImage(32, 32, color.White))
	m, err := Decode(r, 16, 16, DefaultThreshold)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := Count(m); got != 0 {
		t.Errorf("obstacle count = %d, want 0", got)
	}
}

func TestDecodeTransparentPixelsAreFluid(t *testing.T) {
	// Black shape on a fully transparent background: only the shape
	// should survive thresholding.
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			img.Set(x, y, color.Black)
		}
	}
	m, err := Decode(encodePNG(t, img), 16, 16, DefaultThreshold)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m[0][0] {
		t.Error("transparent corner decoded as obstacle")
	}
	if !m[8][8] {
		t.Error("opaque black center decoded as fluid")
	}
}

func TestDecodeThresholdSplitsGrays(t *testing.T) {
	gray := color.RGBA{R: 100, G: 100, B: 100, A: 255} // luma ~0.39
	r := encodePNG(t, solidImage(8, 8, gray))

	m, err := Decode(r, 8, 8, 0.5)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := Count(m); got != 64 {
		t.Errorf("obstacle count at threshold 0.5 = %d, want 64", got)
	}

	r2 := encodePNG(t, solidImage(8, 8, gray))
	m2, err := Decode(r2, 8, 8, 0.3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := Count(m2); got != 0 {
		t.Errorf("obstacle count at threshold 0.3 = %d, want 0", got)
	}
}

func TestDecodeScalesToGridDimensions(t *testing.T) {
	// Left half black, right half white, downscaled 64x64 -> 8x4.
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 32 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	m, err := Decode(encodePNG(t, img), 8, 4, DefaultThreshold)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m) != 4 || len(m[0]) != 8 {
		t.Fatalf("mask dimensions = %dx%d, want 8x4", len(m[0]), len(m))
	}
	if !m[2][0] {
		t.Error("left edge should be obstacle")
	}
	if m[2][7] {
		t.Error("right edge should be fluid")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(strings.NewReader("not an image"), 8, 8, DefaultThreshold); err == nil {
		t.Fatal("expected decode error for non-image input")
	}
}

func TestFromImageRejectsInvalidDimensions(t *testing.T) {
	img := solidImage(4, 4, color.Black)
	if _, err := FromImage(img, 0, 8, DefaultThreshold); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := FromImage(img, 8, -1, DefaultThreshold); err == nil {
		t.Error("expected error for negative height")
	}
}

func TestCircle(t *testing.T) {
	m := Circle(20, 20, 10, 10, 4)
	if !m[10][10] {
		t.Error("circle center should be obstacle")
	}
	if m[0][0] {
		t.Error("corner should be fluid")
	}
	if n := Count(m); n == 0 {
		t.Error("circle mask is empty")
	}
}
