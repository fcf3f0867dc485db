package flow

import "math"

// Force is an additive velocity impulse. Position and magnitude are in
// normalized [0,1] units relative to the grid extent; scaling to grid
// units happens at injection time.
type Force struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
}

// Target is a soft velocity constraint. Position and velocity are
// normalized; Weight in [0,1] sets the mixing strength, 1.0 degenerating
// to a hard set.
type Target struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	U      float64 `json:"u"`
	V      float64 `json:"v"`
	Weight float64 `json:"weight"`
}

// ApplyForces adds each force to the velocity of the cell its normalized
// position lands in. Injection is best-effort: entries landing outside
// the grid or on an obstacle are silently skipped, since user-drawn
// forces routinely do. Forces landing on the same cell accumulate.
func (g *Grid) ApplyForces(forces []Force) {
	for _, f := range forces {
		gx := int(math.Floor(f.X * float64(g.Width)))
		gy := int(math.Floor(f.Y * float64(g.Height)))
		if gx < 0 || gx >= g.Width || gy < 0 || gy >= g.Height {
			continue
		}
		i := g.Idx(gx, gy)
		if g.Obstacle[i] {
			continue
		}
		g.U[i] += f.FX * float64(g.Width)
		g.V[i] += f.FY * float64(g.Height)
	}
}

// ApplyTargets mixes each target into the velocity of its cell:
// u' = (1-w)*u + w*scaled. Restricted to the interior; obstacle and
// out-of-range entries are silently skipped.
func (g *Grid) ApplyTargets(targets []Target) {
	for _, t := range targets {
		gx := int(math.Floor(t.X * float64(g.Width)))
		gy := int(math.Floor(t.Y * float64(g.Height)))
		if gx < 1 || gx >= g.Width-1 || gy < 1 || gy >= g.Height-1 {
			continue
		}
		i := g.Idx(gx, gy)
		if g.Obstacle[i] {
			continue
		}
		su := t.U * float64(g.Width)
		sv := t.V * float64(g.Height)
		g.U[i] = (1-t.Weight)*g.U[i] + t.Weight*su
		g.V[i] = (1-t.Weight)*g.V[i] + t.Weight*sv
	}
}

// ForcesToTargets remaps forces into soft targets with the given weight.
// Positions are preserved and the force components carry over unchanged
// into the target velocity. Used by the interactive path, where the
// force-vector UI drives soft targets instead of raw impulses.
func ForcesToTargets(forces []Force, weight float64) []Target {
	targets := make([]Target, 0, len(forces))
	for _, f := range forces {
		targets = append(targets, Target{
			X:      f.X,
			Y:      f.Y,
			U:      f.FX,
			V:      f.FY,
			Weight: weight,
		})
	}
	return targets
}
