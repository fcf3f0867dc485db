package flow

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FieldStats summarizes a velocity field over its fluid cells.
type FieldStats struct {
	FluidCells    int     `json:"fluid_cells"`
	MaxSpeed      float64 `json:"max_speed"`
	MeanSpeed     float64 `json:"mean_speed"`
	StdDevSpeed   float64 `json:"stddev_speed"`
	KineticEnergy float64 `json:"kinetic_energy"`
	MaxDivergence float64 `json:"max_divergence"`
}

// Stats computes summary statistics for g. Obstacle cells are excluded;
// divergence uses the same central differences as the pressure solver
// and is evaluated on the interior only.
func Stats(g *Grid) FieldStats {
	speeds := make([]float64, 0, g.Width*g.Height)
	energy := 0.0
	for i := range g.U {
		if g.Obstacle[i] {
			continue
		}
		speeds = append(speeds, math.Hypot(g.U[i], g.V[i]))
		energy += 0.5 * (g.U[i]*g.U[i] + g.V[i]*g.V[i])
	}

	s := FieldStats{
		FluidCells:    len(speeds),
		KineticEnergy: energy,
	}
	if len(speeds) > 0 {
		s.MaxSpeed = floats.Max(speeds)
		s.MeanSpeed = stat.Mean(speeds, nil)
	}
	if len(speeds) > 1 {
		s.StdDevSpeed = stat.StdDev(speeds, nil)
	}

	w := g.Width
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			div := math.Abs(g.U[i+1] - g.U[i-1] + g.V[i+w] - g.V[i-w])
			if div > s.MaxDivergence {
				s.MaxDivergence = div
			}
		}
	}
	return s
}
