package flow

import "math"

// The operators below run in a fixed order inside Step. All of them skip
// obstacle cells and sweep only the interior [1, dim-2] range, except
// EnforceBoundaries which owns the borders and always runs last.

const viscosityEpsilon = 1e-6

// Advect transports the velocity field with a semi-Lagrangian backtrace:
// each interior cell samples the field at (x - u*dt, y - v*dt) via
// bilinear interpolation. Two-pass: results go into scratch buffers and
// commit only after the full sweep, so no cell reads a partially updated
// neighbor.
func (g *Grid) Advect(dt float64) {
	newU := make([]float64, len(g.U))
	newV := make([]float64, len(g.V))
	copy(newU, g.U)
	copy(newV, g.V)

	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < g.Width-1; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			srcX := float64(x) - g.U[i]*dt
			srcY := float64(y) - g.V[i]*dt
			newU[i] = g.sampleBilinear(g.U, srcX, srcY)
			newV[i] = g.sampleBilinear(g.V, srcX, srcY)
		}
	}

	copy(g.U, newU)
	copy(g.V, newV)
}

// sampleBilinear interpolates field at a fractional position. The source
// is clamped to [0.5, dim-1.5] so all four sample corners stay inside
// the valid neighbor range.
func (g *Grid) sampleBilinear(field []float64, x, y float64) float64 {
	x = clamp(x, 0.5, float64(g.Width)-1.5)
	y = clamp(y, 0.5, float64(g.Height)-1.5)

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	tx := x - float64(x0)
	ty := y - float64(y0)

	v00 := field[g.Idx(x0, y0)]
	v10 := field[g.Idx(x1, y0)]
	v01 := field[g.Idx(x0, y1)]
	v11 := field[g.Idx(x1, y1)]

	return v00*(1-tx)*(1-ty) +
		v10*tx*(1-ty) +
		v01*(1-tx)*ty +
		v11*tx*ty
}

// Diffuse applies discrete Laplacian diffusion to both velocity
// components: new = old + viscosity*(sum of 4 neighbors - 4*center).
// Two-pass like Advect. Viscosities below 1e-6 are a no-op.
func (g *Grid) Diffuse(viscosity float64) {
	if viscosity < viscosityEpsilon {
		return
	}

	newU := make([]float64, len(g.U))
	newV := make([]float64, len(g.V))
	copy(newU, g.U)
	copy(newV, g.V)

	w := g.Width
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			uLap := g.U[i-1] + g.U[i+1] + g.U[i-w] + g.U[i+w] - 4*g.U[i]
			vLap := g.V[i-1] + g.V[i+1] + g.V[i-w] + g.V[i+w] - 4*g.V[i]
			newU[i] = g.U[i] + viscosity*uLap
			newV[i] = g.V[i] + viscosity*vLap
		}
	}

	copy(g.U, newU)
	copy(g.V, newV)
}

// RelaxPressure runs one Gauss-Seidel relaxation pass driving pressure
// against the local velocity divergence. Deliberately in-place: updated
// neighbor pressures feed into later cells within the same sweep, which
// is what makes the relaxation converge faster than a Jacobi pass.
// Divergence uses central differences with implicit unit cell spacing.
func (g *Grid) RelaxPressure(relaxation float64) {
	w := g.Width
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			div := g.U[i+1] - g.U[i-1] + g.V[i+w] - g.V[i-w]
			g.P[i] -= relaxation * div
		}
	}
}

// ApplyPressureGradient corrects velocity from the central-difference
// pressure gradient, nudging the field back toward incompressibility.
func (g *Grid) ApplyPressureGradient(impact float64) {
	w := g.Width
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			g.U[i] -= impact * (g.P[i+1] - g.P[i-1])
			g.V[i] -= impact * (g.P[i+w] - g.P[i-w])
		}
	}
}

// EnforceBoundaries zeroes velocity on every obstacle cell and on the
// outermost ring of the grid. The only operator that touches the full
// grid including borders; it runs last so no later stage can reintroduce
// nonzero boundary velocity.
func (g *Grid) EnforceBoundaries() {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := g.Idx(x, y)
			if g.Obstacle[i] || x == 0 || y == 0 || x == g.Width-1 || y == g.Height-1 {
				g.U[i] = 0
				g.V[i] = 0
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
