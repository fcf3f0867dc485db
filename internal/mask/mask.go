// Package mask derives solver obstacle masks from user-supplied images.
// Dark, opaque pixels become obstacle cells; everything else is fluid.
package mask

import (
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// DefaultThreshold is the luminance fraction below which an opaque pixel
// counts as an obstacle.
const DefaultThreshold = 0.5

// minAlpha is the opacity below which a pixel is treated as empty
// regardless of its color. Drag-and-dropped PNGs routinely carry a
// transparent background around the drawn shape.
const minAlpha = 0x4000

// Decode reads an encoded image (PNG, JPEG, or GIF) and converts it to
// an obstacle mask of the given grid dimensions.
func Decode(r io.Reader, width, height int, threshold float64) ([][]bool, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	m, err := FromImage(img, width, height, threshold)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", format, err)
	}
	return m, nil
}

// FromImage scales img to width x height and thresholds it into an
// obstacle mask, indexed mask[y][x]. Pixels with luminance below
// threshold (and sufficient opacity) become obstacles.
func FromImage(img image.Image, width, height int, threshold float64) ([][]bool, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mask dimensions must be positive, got %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("source image is empty")
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)

	m := make([][]bool, height)
	for y := 0; y < height; y++ {
		m[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			r, g, bb, a := scaled.At(x, y).RGBA()
			if a < minAlpha {
				continue
			}
			// Rec. 601 luma, 16-bit channels normalized to [0,1].
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bb)) / 0xffff
			m[y][x] = lum < threshold
		}
	}
	return m, nil
}

// Circle returns a width x height mask with a filled circular obstacle,
// useful for tests and the batch CLI's built-in scenario.
func Circle(width, height, cx, cy, radius int) [][]bool {
	m := make([][]bool, height)
	for y := 0; y < height; y++ {
		m[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			dx := x - cx
			dy := y - cy
			m[y][x] = dx*dx+dy*dy <= radius*radius
		}
	}
	return m
}

// Count returns the number of obstacle cells in a mask.
func Count(m [][]bool) int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}
