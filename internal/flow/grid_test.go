package flow

import (
	"errors"
	"testing"
)

func TestNewGridRejectsInvalidDimensions(t *testing.T) {
	cases := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative width", -1, 10},
		{"negative height", 10, -5},
		{"both zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGrid(tc.w, tc.h); !errors.Is(err, ErrInvalidDimension) {
				t.Errorf("NewGrid(%d, %d) error = %v, want ErrInvalidDimension", tc.w, tc.h, err)
			}
		})
	}
}

func TestNewGridAllocatesZeroedBuffers(t *testing.T) {
	g, err := NewGrid(8, 6)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.Width != 8 || g.Height != 6 {
		t.Errorf("dimensions = %dx%d, want 8x6", g.Width, g.Height)
	}
	if len(g.P) != 48 || len(g.U) != 48 || len(g.V) != 48 || len(g.Obstacle) != 48 {
		t.Fatalf("buffer lengths = %d/%d/%d/%d, want 48", len(g.P), len(g.U), len(g.V), len(g.Obstacle))
	}
	for i := range g.U {
		if g.P[i] != 0 || g.U[i] != 0 || g.V[i] != 0 || g.Obstacle[i] {
			t.Fatalf("cell %d not zeroed", i)
		}
	}
}

func TestNewGridFromMaskRejectsEmpty(t *testing.T) {
	if _, err := NewGridFromMask(nil); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("nil mask error = %v, want ErrEmptyMask", err)
	}
	if _, err := NewGridFromMask([][]bool{}); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("zero-row mask error = %v, want ErrEmptyMask", err)
	}
	if _, err := NewGridFromMask([][]bool{{}}); !errors.Is(err, ErrEmptyMask) {
		t.Errorf("zero-column mask error = %v, want ErrEmptyMask", err)
	}
}

func TestNewGridFromMaskCopiesObstacles(t *testing.T) {
	mask := [][]bool{
		{false, true, false},
		{true, false, true},
	}
	g, err := NewGridFromMask(mask)
	if err != nil {
		t.Fatalf("NewGridFromMask: %v", err)
	}
	if g.Width != 3 || g.Height != 2 {
		t.Fatalf("dimensions = %dx%d, want 3x2", g.Width, g.Height)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if got := g.Obstacle[g.Idx(x, y)]; got != mask[y][x] {
				t.Errorf("obstacle at (%d,%d) = %t, want %t", x, y, got, mask[y][x])
			}
		}
	}
}

func TestNewGridFromMaskPadsShortRows(t *testing.T) {
	mask := [][]bool{
		{true, true, true},
		{true},
	}
	g, err := NewGridFromMask(mask)
	if err != nil {
		t.Fatalf("NewGridFromMask: %v", err)
	}
	if !g.Obstacle[g.Idx(0, 1)] {
		t.Error("cell (0,1) should be an obstacle")
	}
	if g.Obstacle[g.Idx(1, 1)] || g.Obstacle[g.Idx(2, 1)] {
		t.Error("padded cells in short row should be fluid")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g, _ := NewGrid(4, 4)
	g.U[5] = 1.5
	g.V[6] = -2.0
	g.P[7] = 0.25
	g.Obstacle[8] = true

	c := g.Clone()
	if c.U[5] != 1.5 || c.V[6] != -2.0 || c.P[7] != 0.25 || !c.Obstacle[8] {
		t.Fatal("clone did not copy cell values")
	}

	c.U[5] = 99
	c.V[6] = 99
	c.P[7] = 99
	c.Obstacle[8] = false
	if g.U[5] != 1.5 || g.V[6] != -2.0 || g.P[7] != 0.25 || !g.Obstacle[8] {
		t.Error("mutating clone affected the original")
	}
}

func TestMaxVelocityDelta(t *testing.T) {
	a, _ := NewGrid(3, 3)
	b, _ := NewGrid(3, 3)

	if d := MaxVelocityDelta(a, b); d != 0 {
		t.Errorf("delta of identical grids = %g, want 0", d)
	}

	b.U[4] = 0.5
	b.V[2] = -0.75
	if d := MaxVelocityDelta(a, b); d != 0.75 {
		t.Errorf("delta = %g, want 0.75", d)
	}
	// Symmetric in its arguments.
	if d := MaxVelocityDelta(b, a); d != 0.75 {
		t.Errorf("reversed delta = %g, want 0.75", d)
	}
}
