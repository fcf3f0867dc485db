// Package session runs the interactive steady-state loop: a single
// cancellable background run per Runner, with per-step convergence
// telemetry readable while the run is in flight.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowbench-sim/flowbench/internal/flow"
)

// Status represents the current state of a session run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusConverged Status = "converged"
	StatusAborted   Status = "aborted"
	StatusStepLimit Status = "step_limit"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusConverged || s == StatusAborted || s == StatusStepLimit
}

const (
	// MaxSteps is the hard ceiling on steps per session.
	MaxSteps = 5000
	// ConvergenceThreshold is the velocity delta below which the run is
	// declared converged, checked on any step after the first.
	ConvergenceThreshold = 0.0001
)

// StartRequest defines the parameters for starting a session.
type StartRequest struct {
	Forces []flow.Force `json:"forces"`
	// TargetWeight is the mixing weight attached when forces are
	// converted to soft targets at session start.
	TargetWeight float64     `json:"target_weight"`
	Config       flow.Config `json:"config"`
}

// RunState holds the observable state of the current (or last) run.
type RunState struct {
	RunID           string     `json:"run_id,omitempty"`
	Status          Status     `json:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	StepsCompleted  int        `json:"steps_completed"`
	LastDelta       *float64   `json:"last_delta,omitempty"`
	Converged       bool       `json:"converged"`
	StepsToConverge *int       `json:"steps_to_converge,omitempty"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	Deltas          []float64  `json:"deltas,omitempty"`
}

// StepFunc receives per-step telemetry: the 1-based step index and the
// max velocity delta against the previous snapshot.
type StepFunc func(step int, delta float64)

// Runner owns at most one active session at a time. Starting a new
// session first cancels any in-flight one (cancel-then-restart, never
// queuing). Steps are discrete units of work: cancellation is checked
// between whole steps, so a cancelled run always leaves the last
// completed snapshot intact, never a partially applied one.
type Runner struct {
	mu     sync.RWMutex
	state  RunState
	grid   *flow.Grid // last completed snapshot
	cancel context.CancelFunc
	done   chan struct{}

	// OnStep, when set before Start, is invoked after every completed
	// step from the run goroutine.
	OnStep StepFunc
}

// NewRunner creates an idle runner.
func NewRunner() *Runner {
	return &Runner{state: RunState{Status: StatusIdle}}
}

// Start begins a new session on the given grid. Any in-flight session is
// cancelled and drained first. The grid is cloned, so the caller's copy
// is never mutated.
func (r *Runner) Start(ctx context.Context, grid *flow.Grid, req StartRequest) error {
	if grid == nil {
		return fmt.Errorf("session: no grid to simulate")
	}
	if err := req.Config.Validate(); err != nil {
		return fmt.Errorf("session: invalid config: %w", err)
	}

	// Cancel-then-restart: wind down any running session before
	// touching state for the new one. The drain is keyed on the run's
	// done channel, not the cancel func: Stop nils the cancel while the
	// goroutine is still draining, and a stale goroutine left running
	// here would write its steps and terminal status into the new run.
	r.mu.Lock()
	for r.state.Status == StatusRunning && r.done != nil {
		cancel, done := r.cancel, r.done
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		<-done
		r.mu.Lock()
	}

	now := time.Now()
	runID := uuid.NewString()
	r.state = RunState{
		RunID:     runID,
		Status:    StatusRunning,
		StartedAt: &now,
		Width:     grid.Width,
		Height:    grid.Height,
	}
	r.grid = grid.Clone()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	// Forces are converted to soft targets once, up front; the loop
	// itself never reapplies raw forces.
	targets := flow.ForcesToTargets(req.Forces, req.TargetWeight)

	go r.run(runCtx, targets, req.Config, done)

	return nil
}

// Stop cancels a running session. Stopping an idle runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Wait blocks until the current run terminates. Returns immediately if
// no run is in flight.
func (r *Runner) Wait() {
	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// State returns a copy of the current run state.
func (r *Runner) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state := r.state
	deltas := make([]float64, len(r.state.Deltas))
	copy(deltas, r.state.Deltas)
	state.Deltas = deltas
	return state
}

// Snapshot returns a clone of the last completed grid, or nil before the
// first Start.
func (r *Runner) Snapshot() *flow.Grid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.grid == nil {
		return nil
	}
	return r.grid.Clone()
}

// run executes the session loop in a background goroutine. Each
// iteration is one whole step; the context is checked at the top of
// every iteration so cancellation takes effect within one step.
func (r *Runner) run(ctx context.Context, targets []flow.Target, cfg flow.Config, done chan struct{}) {
	defer close(done)

	r.mu.RLock()
	current := r.grid
	r.mu.RUnlock()

	for step := 1; step <= MaxSteps; step++ {
		select {
		case <-ctx.Done():
			r.finish(StatusAborted, nil)
			log.Printf("[session] aborted after %d steps", step-1)
			return
		default:
		}

		next := flow.Step(current, nil, targets, cfg)
		delta := flow.MaxVelocityDelta(next, current)
		current = next

		r.mu.Lock()
		r.grid = current
		r.state.StepsCompleted = step
		d := delta
		r.state.LastDelta = &d
		r.state.Deltas = append(r.state.Deltas, delta)
		onStep := r.OnStep
		r.mu.Unlock()

		if onStep != nil {
			onStep(step, delta)
		}

		if step > 1 && delta < ConvergenceThreshold {
			steps := step
			r.finish(StatusConverged, &steps)
			log.Printf("[session] converged after %d steps (delta=%.6g)", step, delta)
			return
		}
	}

	r.finish(StatusStepLimit, nil)
	log.Printf("[session] step limit reached after %d steps", MaxSteps)
}

// finish records the terminal state for the run.
func (r *Runner) finish(status Status, stepsToConverge *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.state.Status = status
	r.state.CompletedAt = &now
	r.state.Converged = status == StatusConverged
	r.state.StepsToConverge = stepsToConverge
	// Release the per-run context on every terminal path, not just
	// cancellation; Stop may already have invoked it.
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
