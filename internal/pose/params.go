// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Params are the heuristic stabiliser constants of the estimator. They are
// tuned by hand, not derived from a physical model; changing them changes
// observable tracking behaviour.
type Params struct {
	// Friction multiplies velocity on every accepted step.
	Friction float64 `yaml:"friction"`
	// DeadZone forces world acceleration components with a smaller
	// magnitude to exactly zero before integration.
	DeadZone float64 `yaml:"dead_zone"`
	// ZVUThreshold: if every raw world acceleration component is below it
	// the device is considered stationary and velocity is scaled by ZVUFactor.
	ZVUThreshold float64 `yaml:"zvu_threshold"`
	ZVUFactor    float64 `yaml:"zvu_factor"`
	// PositionScale attenuates the velocity → position integration. It is
	// not a unit conversion.
	PositionScale float64 `yaml:"position_scale"`
	// Gravity is subtracted from the world Y axis. This assumes the device
	// up axis stays aligned with world vertical, which is an approximation.
	Gravity float64 `yaml:"gravity"`
	// MaxStep is the largest time delta that is integrated. Larger gaps are
	// treated as a stall and skipped.
	MaxStep time.Duration `yaml:"max_step"`
	// Alpha is the complementary blend weight. It is carried for tuning
	// files but the update path does not blend accelerometer tilt into the
	// orientation.
	Alpha float64 `yaml:"alpha"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Friction:      0.95,
		DeadZone:      0.2,
		ZVUThreshold:  0.1,
		ZVUFactor:     0.5,
		PositionScale: 0.5,
		Gravity:       9.81,
		MaxStep:       time.Second,
		Alpha:         0.98,
	}
}

// Validate checks that every tunable is in a usable range.
func (p Params) Validate() error {
	if p.Friction < 0 || p.Friction > 1 {
		return fmt.Errorf("friction must be in [0,1], got %v", p.Friction)
	}
	if p.DeadZone < 0 {
		return fmt.Errorf("dead_zone must be >= 0, got %v", p.DeadZone)
	}
	if p.ZVUThreshold < 0 {
		return fmt.Errorf("zvu_threshold must be >= 0, got %v", p.ZVUThreshold)
	}
	if p.ZVUFactor < 0 || p.ZVUFactor > 1 {
		return fmt.Errorf("zvu_factor must be in [0,1], got %v", p.ZVUFactor)
	}
	if p.PositionScale < 0 {
		return fmt.Errorf("position_scale must be >= 0, got %v", p.PositionScale)
	}
	if p.MaxStep <= 0 {
		return fmt.Errorf("max_step must be positive, got %v", p.MaxStep)
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("alpha must be in [0,1], got %v", p.Alpha)
	}
	return nil
}

// LoadParams reads a YAML tuning file. Keys missing from the file keep their
// DefaultParams value.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return p, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid tuning: %w", err)
	}
	return p, nil
}
