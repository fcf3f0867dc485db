package flow

import "fmt"

// Config holds the solver parameters for one run. It is a pure value
// object: callers pass it into every entry point and it is never mutated
// during a run.
type Config struct {
	Relaxation     float64 `json:"relaxation"`      // pressure relaxation factor
	PressureImpact float64 `json:"pressure_impact"` // velocity correction strength
	TimeStep       float64 `json:"time_step"`       // advection dt
	Viscosity      float64 `json:"viscosity"`       // diffusion coefficient
	Iterations     int     `json:"iterations"`      // batch-mode step count
}

// DefaultConfig returns the documented solver defaults. Callers opt into
// these explicitly; there is no process-wide mutable default.
func DefaultConfig() Config {
	return Config{
		Relaxation:     0.2,
		PressureImpact: 0.1,
		TimeStep:       0.1,
		Viscosity:      0.01,
		Iterations:     20,
	}
}

// Validate checks the configuration for values that are broken rather
// than merely unstable. The solver does not police numerical stability;
// keeping parameters in stable ranges is the caller's responsibility.
func (c Config) Validate() error {
	if c.Relaxation < 0 {
		return fmt.Errorf("Relaxation must be non-negative, got %f", c.Relaxation)
	}
	if c.PressureImpact < 0 {
		return fmt.Errorf("PressureImpact must be non-negative, got %f", c.PressureImpact)
	}
	if c.TimeStep < 0 {
		return fmt.Errorf("TimeStep must be non-negative, got %f", c.TimeStep)
	}
	if c.Viscosity < 0 {
		return fmt.Errorf("Viscosity must be non-negative, got %f", c.Viscosity)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("Iterations must be positive, got %d", c.Iterations)
	}
	return nil
}
