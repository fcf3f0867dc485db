package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/flowbench-sim/flowbench/internal/db"
	"github.com/flowbench-sim/flowbench/internal/flow"
	"github.com/flowbench-sim/flowbench/internal/flow/session"
	"github.com/flowbench-sim/flowbench/internal/mask"
	"github.com/flowbench-sim/flowbench/internal/render"
)

// maxMaskUploadBytes bounds obstacle image uploads.
const maxMaskUploadBytes = 8 << 20

// handleMaskUpload replaces the current obstacle grid from an uploaded
// image. Query params width, height, and threshold override the tuning
// defaults. Uploading a mask does not stop a running session; the new
// grid takes effect on the next session start.
func (s *Server) handleMaskUpload(w http.ResponseWriter, r *http.Request) {
	width := s.tuning.GetGridWidth()
	height := s.tuning.GetGridHeight()
	threshold := s.tuning.GetMaskThreshold()

	if v := r.URL.Query().Get("width"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1024 {
			width = n
		}
	}
	if v := r.URL.Query().Get("height"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1024 {
			height = n
		}
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			threshold = f
		}
	}

	m, err := mask.Decode(io.LimitReader(r.Body, maxMaskUploadBytes), width, height, threshold)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	grid, err := flow.NewGridFromMask(m)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.grid = grid
	s.mu.Unlock()

	log.Printf("[api] mask updated: %dx%d, %d obstacle cells", width, height, mask.Count(m))
	s.writeJSON(w, map[string]interface{}{
		"width":          width,
		"height":         height,
		"obstacle_cells": mask.Count(m),
	})
}

// startRequest is the session start body. Config fields are pointers so
// omitted values fall back to the server tuning defaults.
type startRequest struct {
	Forces         []flow.Force `json:"forces"`
	TargetWeight   *float64     `json:"target_weight,omitempty"`
	Relaxation     *float64     `json:"relaxation,omitempty"`
	PressureImpact *float64     `json:"pressure_impact,omitempty"`
	TimeStep       *float64     `json:"time_step,omitempty"`
	Viscosity      *float64     `json:"viscosity,omitempty"`
}

// handleSessionStart starts a new session on the current grid. Any
// in-flight session is cancelled first (cancel-then-restart, never
// queued).
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg := s.tuning.FlowConfig()
	if req.Relaxation != nil {
		cfg.Relaxation = *req.Relaxation
	}
	if req.PressureImpact != nil {
		cfg.PressureImpact = *req.PressureImpact
	}
	if req.TimeStep != nil {
		cfg.TimeStep = *req.TimeStep
	}
	if req.Viscosity != nil {
		cfg.Viscosity = *req.Viscosity
	}
	weight := s.tuning.GetTargetWeight()
	if req.TargetWeight != nil {
		weight = *req.TargetWeight
	}

	grid := s.currentGrid()
	if grid == nil {
		s.writeJSONError(w, http.StatusConflict, "no obstacle mask loaded")
		return
	}

	// The run outlives the request, so it gets a background context;
	// cancellation goes through the runner, not the request.
	err := s.runner.Start(context.Background(), grid, session.StartRequest{
		Forces:       req.Forces,
		TargetWeight: weight,
		Config:       cfg,
	})
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := s.runner.State()
	if s.store != nil {
		s.persistRun(state.RunID, cfg, grid)
	}

	s.writeJSON(w, state)
}

// persistRun records the run and spawns a goroutine that waits for the
// session to terminate, then writes its telemetry and final field.
func (s *Server) persistRun(runID string, cfg flow.Config, grid *flow.Grid) {
	cfgJSON, _ := json.Marshal(cfg)
	err := s.store.InsertRun(&db.Run{
		RunID:            runID,
		StartedUnixNanos: time.Now().UnixNano(),
		Status:           string(session.StatusRunning),
		ConfigJSON:       string(cfgJSON),
		Width:            grid.Width,
		Height:           grid.Height,
	})
	if err != nil {
		log.Printf("[api] WARNING: failed to record run %s: %v", runID, err)
		return
	}

	go func() {
		s.runner.Wait()
		state := s.runner.State()
		if state.RunID != runID {
			// A restart superseded this run before it was drained.
			return
		}
		for i, d := range state.Deltas {
			if err := s.store.RecordStep(runID, i+1, d); err != nil {
				log.Printf("[api] WARNING: failed to record step %d: %v", i+1, err)
				break
			}
		}
		if err := s.store.CompleteRun(runID, string(state.Status), state.StepsCompleted,
			state.Converged, state.LastDelta); err != nil {
			log.Printf("[api] WARNING: failed to complete run %s: %v", runID, err)
		}
		if snap := s.runner.Snapshot(); snap != nil {
			if _, err := s.store.SaveFieldSnapshot(runID, snap); err != nil {
				log.Printf("[api] WARNING: failed to save field snapshot: %v", err)
			}
		}
	}()
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	s.runner.Stop()
	s.runner.Wait()
	s.writeJSON(w, s.runner.State())
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.runner.State())
}

// fieldResponse is the JSON form of a velocity snapshot handed to
// rendering consumers. Velocities are grid units per step; any display
// scaling is the consumer's concern.
type fieldResponse struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	U      []float64       `json:"u"`
	V      []float64       `json:"v"`
	Stats  flow.FieldStats `json:"stats"`
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	snap := s.runner.Snapshot()
	if snap == nil {
		s.writeJSONError(w, http.StatusNotFound, "no session has produced a field yet")
		return
	}
	s.writeJSON(w, fieldResponse{
		Width:  snap.Width,
		Height: snap.Height,
		U:      snap.U,
		V:      snap.V,
		Stats:  flow.Stats(snap),
	})
}

func (s *Server) handleFieldPNG(w http.ResponseWriter, r *http.Request) {
	snap := s.runner.Snapshot()
	if snap == nil {
		s.writeJSONError(w, http.StatusNotFound, "no session has produced a field yet")
		return
	}

	stride := snap.Width / 24
	if v := r.URL.Query().Get("stride"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			stride = n
		}
	}

	p, err := render.ArrowField(snap, stride)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.WritePNG(p, w, 8*vg.Inch, 8*vg.Inch); err != nil {
		log.Printf("[api] failed to write field PNG: %v", err)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "run store not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "run store not configured")
		return
	}
	runID := r.PathValue("id")
	run, err := s.store.GetRun(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "no run with id "+runID)
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	steps, err := s.store.GetRunSteps(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"run": run, "steps": steps})
}
