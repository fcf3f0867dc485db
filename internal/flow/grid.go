package flow

import "errors"

var (
	// ErrInvalidDimension is returned when a grid is constructed with a
	// non-positive width or height.
	ErrInvalidDimension = errors.New("flow: grid dimensions must be positive")

	// ErrEmptyMask is returned when an obstacle mask has zero rows or
	// zero columns.
	ErrEmptyMask = errors.New("flow: obstacle mask is empty")
)

// Grid holds the mutable state of one simulation snapshot: pressure,
// velocity components, and obstacle flags. All fields are flat row-major
// buffers of length Width*Height; velocity is measured in grid cells per
// step, not normalized units.
//
// Obstacle flags are set at construction and treated as immutable for the
// lifetime of a run. After any completed step, obstacle cells and the
// outermost ring of border cells carry zero velocity.
type Grid struct {
	Width  int
	Height int

	P        []float64 // pressure
	U        []float64 // x velocity, grid units per step
	V        []float64 // y velocity, grid units per step
	Obstacle []bool
}

// Idx maps cell coordinates to the flat buffer index.
func (g *Grid) Idx(x, y int) int { return y*g.Width + x }

// NewGrid creates a zeroed grid with no obstacles.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimension
	}
	n := width * height
	return &Grid{
		Width:    width,
		Height:   height,
		P:        make([]float64, n),
		U:        make([]float64, n),
		V:        make([]float64, n),
		Obstacle: make([]bool, n),
	}, nil
}

// NewGridFromMask creates a zeroed grid whose obstacle flags are copied
// from mask, indexed mask[y][x]. Rows shorter than the first row are
// padded with fluid cells.
func NewGridFromMask(mask [][]bool) (*Grid, error) {
	if len(mask) == 0 || len(mask[0]) == 0 {
		return nil, ErrEmptyMask
	}
	height := len(mask)
	width := len(mask[0])
	g, err := NewGrid(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		row := mask[y]
		for x := 0; x < width && x < len(row); x++ {
			g.Obstacle[g.Idx(x, y)] = row[x]
		}
	}
	return g, nil
}

// Clone returns a deep, independent copy. Mutating the copy never
// affects the original.
func (g *Grid) Clone() *Grid {
	n := g.Width * g.Height
	c := &Grid{
		Width:    g.Width,
		Height:   g.Height,
		P:        make([]float64, n),
		U:        make([]float64, n),
		V:        make([]float64, n),
		Obstacle: make([]bool, n),
	}
	copy(c.P, g.P)
	copy(c.U, g.U)
	copy(c.V, g.V)
	copy(c.Obstacle, g.Obstacle)
	return c
}

// MaxVelocityDelta returns the maximum absolute per-cell difference
// between the velocity fields of a and b, over both components. Grids
// must share dimensions; mismatched grids report the delta over the
// overlapping prefix.
func MaxVelocityDelta(a, b *Grid) float64 {
	n := len(a.U)
	if len(b.U) < n {
		n = len(b.U)
	}
	maxDiff := 0.0
	for i := 0; i < n; i++ {
		if d := abs(a.U[i] - b.U[i]); d > maxDiff {
			maxDiff = d
		}
		if d := abs(a.V[i] - b.V[i]); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
