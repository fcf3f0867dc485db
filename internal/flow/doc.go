// Package flow owns the numerical core of the simulator.
//
// Responsibilities: grid state, force and target-velocity injection,
// the per-step field operators (advection, diffusion, pressure
// relaxation, boundary enforcement), and step composition.
// Key types: Grid, Force, Target, Config.
//
// Dependency rule: flow never touches storage, HTTP, or rendering.
// Session orchestration lives in flow/session.
package flow
