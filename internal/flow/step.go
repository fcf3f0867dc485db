package flow

// Step produces one new snapshot from g. The input grid is never
// mutated; each stage runs against the clone in a fixed order:
// forces and targets seed momentum, advection and diffusion transport
// it, pressure relaxation restores approximate incompressibility on the
// transported field, and boundary enforcement runs last.
func Step(g *Grid, forces []Force, targets []Target, cfg Config) *Grid {
	next := g.Clone()
	next.ApplyForces(forces)
	next.Advect(cfg.TimeStep)
	next.Diffuse(cfg.Viscosity)
	next.RelaxPressure(cfg.Relaxation)
	next.ApplyPressureGradient(cfg.PressureImpact)
	next.ApplyTargets(targets)
	next.EnforceBoundaries()
	return next
}

// RunSteadyState runs cfg.Iterations unconditional steps, reapplying the
// raw forces on every one. This is the batch mode; the interactive
// session in flow/session converts forces to targets once up front and
// stops on convergence instead.
func RunSteadyState(g *Grid, forces []Force, targets []Target, cfg Config) *Grid {
	current := g
	for i := 0; i < cfg.Iterations; i++ {
		current = Step(current, forces, targets, cfg)
	}
	return current
}
