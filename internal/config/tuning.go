// Package config loads solver tuning overrides from JSON. The schema
// matches the /api/session/start request body, so the same JSON works
// for startup configuration and per-run overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowbench-sim/flowbench/internal/flow"
	"github.com/flowbench-sim/flowbench/internal/mask"
)

// maxConfigFileSize bounds tuning files; anything larger is a mistake.
const maxConfigFileSize = 1 << 20

// Tuning holds optional overrides for the solver and grid defaults.
// All fields are pointers: omitted fields keep their defaults, so
// partial configs are safe.
type Tuning struct {
	Relaxation     *float64 `json:"relaxation,omitempty"`
	PressureImpact *float64 `json:"pressure_impact,omitempty"`
	TimeStep       *float64 `json:"time_step,omitempty"`
	Viscosity      *float64 `json:"viscosity,omitempty"`
	Iterations     *int     `json:"iterations,omitempty"`

	// Interactive session parameters
	TargetWeight *float64 `json:"target_weight,omitempty"`

	// Grid and mask ingestion parameters
	GridWidth     *int     `json:"grid_width,omitempty"`
	GridHeight    *int     `json:"grid_height,omitempty"`
	MaskThreshold *float64 `json:"mask_threshold,omitempty"`
}

// Default values for parameters outside flow.DefaultConfig.
const (
	DefaultTargetWeight = 0.1
	DefaultGridWidth    = 64
	DefaultGridHeight   = 64
)

// Load reads a Tuning from a JSON file.
func Load(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var t Tuning
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &t, nil
}

// FlowConfig applies the overrides on top of flow.DefaultConfig.
func (t *Tuning) FlowConfig() flow.Config {
	cfg := flow.DefaultConfig()
	if t == nil {
		return cfg
	}
	if t.Relaxation != nil {
		cfg.Relaxation = *t.Relaxation
	}
	if t.PressureImpact != nil {
		cfg.PressureImpact = *t.PressureImpact
	}
	if t.TimeStep != nil {
		cfg.TimeStep = *t.TimeStep
	}
	if t.Viscosity != nil {
		cfg.Viscosity = *t.Viscosity
	}
	if t.Iterations != nil {
		cfg.Iterations = *t.Iterations
	}
	return cfg
}

// GetTargetWeight returns the target mixing weight override or default.
func (t *Tuning) GetTargetWeight() float64 {
	if t != nil && t.TargetWeight != nil {
		return *t.TargetWeight
	}
	return DefaultTargetWeight
}

// GetGridWidth returns the grid width override or default.
func (t *Tuning) GetGridWidth() int {
	if t != nil && t.GridWidth != nil {
		return *t.GridWidth
	}
	return DefaultGridWidth
}

// GetGridHeight returns the grid height override or default.
func (t *Tuning) GetGridHeight() int {
	if t != nil && t.GridHeight != nil {
		return *t.GridHeight
	}
	return DefaultGridHeight
}

// GetMaskThreshold returns the luminance threshold override or default.
func (t *Tuning) GetMaskThreshold() float64 {
	if t != nil && t.MaskThreshold != nil {
		return *t.MaskThreshold
	}
	return mask.DefaultThreshold
}
