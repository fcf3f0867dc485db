// Command flowbatch runs a steady-state simulation from the command
// line and writes field plots, without the HTTP server. Two modes:
// a fixed-iteration batch run, or a session run that iterates until
// convergence or the step ceiling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowbench-sim/flowbench/internal/config"
	"github.com/flowbench-sim/flowbench/internal/db"
	"github.com/flowbench-sim/flowbench/internal/flow"
	"github.com/flowbench-sim/flowbench/internal/flow/session"
	"github.com/flowbench-sim/flowbench/internal/mask"
	"github.com/flowbench-sim/flowbench/internal/render"
)

var (
	maskFile      = flag.String("mask", "", "Obstacle mask image (optional)")
	circle        = flag.Bool("circle", false, "Use a built-in circular obstacle instead of a mask image")
	configFile    = flag.String("config", "", "Tuning config JSON file (optional)")
	forcesArg     = flag.String("forces", "", "Forces as x,y,fx,fy tuples separated by semicolons (normalized coordinates)")
	untilSteady   = flag.Bool("steady", false, "Iterate until convergence instead of a fixed iteration count")
	outDir        = flag.String("out", "flowbatch-out", "Output directory for plots")
	dbFile        = flag.String("db", "", "SQLite database to record the run into (optional)")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory (used with -db)")
)

func main() {
	flag.Parse()

	var tuning *config.Tuning
	if *configFile != "" {
		var err error
		tuning, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	grid, err := buildGrid(tuning)
	if err != nil {
		log.Fatalf("failed to build grid: %v", err)
	}

	forces, err := parseForces(*forcesArg)
	if err != nil {
		log.Fatalf("failed to parse forces: %v", err)
	}
	if len(forces) == 0 {
		log.Fatal("at least one force is required (-forces)")
	}

	cfg := tuning.FlowConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	var (
		result *flow.Grid
		deltas []float64
	)
	start := time.Now()
	if *untilSteady {
		result, deltas = runSession(grid, forces, tuning.GetTargetWeight(), cfg)
	} else {
		result = flow.RunSteadyState(grid, forces, nil, cfg)
		fmt.Printf("completed %d iterations in %s\n", cfg.Iterations, time.Since(start).Round(time.Millisecond))
	}

	stats := flow.Stats(result)
	fmt.Printf("field stats: max_speed=%.4f mean_speed=%.4f kinetic_energy=%.4f max_divergence=%.4f\n",
		stats.MaxSpeed, stats.MeanSpeed, stats.KineticEnergy, stats.MaxDivergence)

	n, err := render.SaveFieldPlots(result, deltas, *outDir)
	if err != nil {
		log.Fatalf("failed to write plots: %v", err)
	}
	fmt.Printf("%d plots written to %s\n", n, *outDir)
}

// runSession runs the convergence loop and records the run if -db is
// set. The forces are converted to soft targets once at session start.
func runSession(grid *flow.Grid, forces []flow.Force, weight float64, cfg flow.Config) (*flow.Grid, []float64) {
	runner := session.NewRunner()

	var store *db.DB
	if *dbFile != "" {
		var err error
		store, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
		if err := store.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	err := runner.Start(context.Background(), grid, session.StartRequest{
		Forces:       forces,
		TargetWeight: weight,
		Config:       cfg,
	})
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	runner.Wait()

	state := runner.State()
	fmt.Printf("session %s: status=%s steps=%d converged=%t\n",
		state.RunID, state.Status, state.StepsCompleted, state.Converged)

	if store != nil {
		recordRun(store, state, grid, cfg)
	}
	return runner.Snapshot(), state.Deltas
}

func recordRun(store *db.DB, state session.RunState, grid *flow.Grid, cfg flow.Config) {
	cfgJSON, _ := json.Marshal(cfg)
	err := store.InsertRun(&db.Run{
		RunID:            state.RunID,
		StartedUnixNanos: state.StartedAt.UnixNano(),
		Status:           string(state.Status),
		ConfigJSON:       string(cfgJSON),
		Width:            grid.Width,
		Height:           grid.Height,
	})
	if err != nil {
		log.Fatalf("failed to record run: %v", err)
	}
	for i, d := range state.Deltas {
		if err := store.RecordStep(state.RunID, i+1, d); err != nil {
			log.Fatalf("failed to record step: %v", err)
		}
	}
	if err := store.CompleteRun(state.RunID, string(state.Status), state.StepsCompleted,
		state.Converged, state.LastDelta); err != nil {
		log.Fatalf("failed to complete run: %v", err)
	}
	fmt.Printf("run recorded in %s\n", *dbFile)
}

func buildGrid(tuning *config.Tuning) (*flow.Grid, error) {
	width := tuning.GetGridWidth()
	height := tuning.GetGridHeight()

	if *circle {
		radius := width / 8
		if height/8 < radius {
			radius = height / 8
		}
		return flow.NewGridFromMask(mask.Circle(width, height, width/2, height/2, radius))
	}
	if *maskFile == "" {
		return flow.NewGrid(width, height)
	}
	f, err := os.Open(*maskFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mask.Decode(f, width, height, tuning.GetMaskThreshold())
	if err != nil {
		return nil, err
	}
	return flow.NewGridFromMask(m)
}

// parseForces parses "x,y,fx,fy;x,y,fx,fy" with coordinates and
// magnitudes in normalized [0,1] space.
func parseForces(s string) ([]flow.Force, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var forces []flow.Force
	for _, tuple := range strings.Split(s, ";") {
		fields := strings.Split(strings.TrimSpace(tuple), ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("expected 4 values per force, got %d in %q", len(fields), tuple)
		}
		vals := make([]float64, 4)
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q in force %q: %w", f, tuple, err)
			}
			vals[i] = v
		}
		forces = append(forces, flow.Force{X: vals[0], Y: vals[1], FX: vals[2], FY: vals[3]})
	}
	return forces, nil
}
