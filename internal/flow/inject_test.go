package flow

import (
	"math"
	"testing"
)

func TestApplyForcesScalesToGridUnits(t *testing.T) {
	g, _ := NewGrid(5, 5)
	g.ApplyForces([]Force{{X: 0.5, Y: 0.5, FX: 1.0, FY: 0.5}})

	i := g.Idx(2, 2)
	if g.U[i] != 5.0 {
		t.Errorf("U at (2,2) = %g, want 5.0", g.U[i])
	}
	if g.V[i] != 2.5 {
		t.Errorf("V at (2,2) = %g, want 2.5", g.V[i])
	}
}

func TestApplyForcesAccumulates(t *testing.T) {
	g, _ := NewGrid(10, 10)
	f := Force{X: 0.35, Y: 0.35, FX: 0.1, FY: 0.0}
	g.ApplyForces([]Force{f, f})

	i := g.Idx(3, 3)
	if math.Abs(g.U[i]-2.0) > 1e-12 {
		t.Errorf("U at (3,3) = %g, want 2.0 after two injections", g.U[i])
	}
}

func TestApplyForcesSkipsOutOfBounds(t *testing.T) {
	g, _ := NewGrid(5, 5)
	g.ApplyForces([]Force{
		{X: -0.1, Y: 0.5, FX: 1, FY: 1},
		{X: 0.5, Y: 1.2, FX: 1, FY: 1},
		{X: 1.0, Y: 0.5, FX: 1, FY: 1}, // floor(1.0*5) = 5, out of range
	})
	for i := range g.U {
		if g.U[i] != 0 || g.V[i] != 0 {
			t.Fatalf("cell %d modified by out-of-bounds force", i)
		}
	}
}

func TestApplyForcesSkipsObstacles(t *testing.T) {
	g, _ := NewGrid(5, 5)
	g.Obstacle[g.Idx(2, 2)] = true
	g.ApplyForces([]Force{{X: 0.5, Y: 0.5, FX: 1, FY: 1}})

	i := g.Idx(2, 2)
	if g.U[i] != 0 || g.V[i] != 0 {
		t.Error("force injected into obstacle cell")
	}
}

func TestApplyTargetsMixesVelocity(t *testing.T) {
	g, _ := NewGrid(5, 5)
	g.ApplyTargets([]Target{{X: 0.5, Y: 0.5, U: 0.2, V: 0, Weight: 0.5}})

	i := g.Idx(2, 2)
	// (1-0.5)*0 + 0.5*(0.2*5) = 0.5
	if math.Abs(g.U[i]-0.5) > 1e-12 {
		t.Errorf("U at (2,2) = %g, want 0.5", g.U[i])
	}
	if g.V[i] != 0 {
		t.Errorf("V at (2,2) = %g, want 0", g.V[i])
	}
}

func TestApplyTargetsFullWeightIsHardSet(t *testing.T) {
	g, _ := NewGrid(5, 5)
	i := g.Idx(2, 2)
	g.U[i] = 42

	g.ApplyTargets([]Target{{X: 0.5, Y: 0.5, U: 0.2, V: 0.1, Weight: 1.0}})
	if math.Abs(g.U[i]-1.0) > 1e-12 {
		t.Errorf("U at (2,2) = %g, want 1.0 with weight 1", g.U[i])
	}
	if math.Abs(g.V[i]-0.5) > 1e-12 {
		t.Errorf("V at (2,2) = %g, want 0.5 with weight 1", g.V[i])
	}
}

func TestApplyTargetsSkipsBorderAndObstacles(t *testing.T) {
	g, _ := NewGrid(5, 5)
	g.Obstacle[g.Idx(2, 2)] = true
	g.ApplyTargets([]Target{
		{X: 0.0, Y: 0.5, U: 1, V: 1, Weight: 1}, // lands on x=0 border
		{X: 0.9, Y: 0.9, U: 1, V: 1, Weight: 1}, // lands on (4,4) corner
		{X: 0.5, Y: 0.5, U: 1, V: 1, Weight: 1}, // lands on obstacle
	})
	for i := range g.U {
		if g.U[i] != 0 || g.V[i] != 0 {
			t.Fatalf("cell %d modified by border or obstacle target", i)
		}
	}
}

func TestForcesToTargets(t *testing.T) {
	forces := []Force{
		{X: 0.1, Y: 0.2, FX: 0.3, FY: 0.4},
		{X: 0.5, Y: 0.6, FX: -0.1, FY: 0},
	}
	targets := ForcesToTargets(forces, 0.25)
	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}
	for i, f := range forces {
		tg := targets[i]
		if tg.X != f.X || tg.Y != f.Y || tg.U != f.FX || tg.V != f.FY {
			t.Errorf("target %d = %+v, want position and velocity from %+v", i, tg, f)
		}
		if tg.Weight != 0.25 {
			t.Errorf("target %d weight = %g, want 0.25", i, tg.Weight)
		}
	}
	if got := ForcesToTargets(nil, 0.1); len(got) != 0 {
		t.Errorf("ForcesToTargets(nil) = %v, want empty", got)
	}
}
