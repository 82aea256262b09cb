// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration derives magnetometer hard-iron bounds from a sweep of
// raw samples taken while the node is rotated through a full turn.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/lora_tracker/internal/heading"
)

// MinSamples is the smallest sweep Result accepts.
const MinSamples = 20

var ErrTooFewSamples = errors.New("calibration: not enough samples")

// Result matches the JSON calibration file written by cmd/calibrate.
type Result struct {
	Version     int                 `json:"version"`
	Timestamp   time.Time           `json:"timestamp"`
	Bounds      heading.Calibration `json:"bounds"`
	OffsetX     float64             `json:"offset_x"`
	OffsetY     float64             `json:"offset_y"`
	MeanNorm    float64             `json:"mean_norm"`
	Confidence  float64             `json:"confidence"` // 0-100, Y/X range ratio
	SampleCount int                 `json:"sample_count"`
}

// Sweep accumulates samples. It is not safe for concurrent use.
type Sweep struct {
	xs, ys []float64
}

// NewSweep returns an empty sweep with room for n samples.
func NewSweep(n int) *Sweep {
	return &Sweep{xs: make([]float64, 0, n), ys: make([]float64, 0, n)}
}

// Add records one sample.
func (s *Sweep) Add(sample heading.Sample) {
	s.xs = append(s.xs, sample.X)
	s.ys = append(s.ys, sample.Y)
}

// Len returns the number of samples so far.
func (s *Sweep) Len() int { return len(s.xs) }

// Result computes the bounds of the sweep. A sweep that never moved on an
// axis yields heading.ErrCalibrationDegenerate.
func (s *Sweep) Result() (Result, error) {
	if len(s.xs) < MinSamples {
		return Result{}, fmt.Errorf("%w: %d, need %d", ErrTooFewSamples, len(s.xs), MinSamples)
	}

	b := heading.Calibration{
		XMin: floats.Min(s.xs),
		XMax: floats.Max(s.xs),
		YMin: floats.Min(s.ys),
		YMax: floats.Max(s.ys),
	}
	if err := b.Validate(); err != nil {
		return Result{}, err
	}

	norms := make([]float64, len(s.xs))
	for i := range s.xs {
		norms[i] = math.Hypot(s.xs[i], s.ys[i])
	}

	rx, ry := b.XMax-b.XMin, b.YMax-b.YMin
	return Result{
		Version:     1,
		Timestamp:   time.Now().UTC(),
		Bounds:      b,
		OffsetX:     (b.XMax + b.XMin) / 2,
		OffsetY:     (b.YMax + b.YMin) / 2,
		MeanNorm:    stat.Mean(norms, nil),
		Confidence:  math.Min(rx, ry) / math.Max(rx, ry) * 100,
		SampleCount: len(s.xs),
	}, nil
}

// Save writes r as indented JSON.
func Save(path string, r Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}

// Load reads a calibration file and validates its bounds.
func Load(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read calibration file: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("failed to parse calibration file %s: %w", path, err)
	}
	if err := r.Bounds.Validate(); err != nil {
		return Result{}, fmt.Errorf("calibration file %s: %w", path, err)
	}
	return r, nil
}

// ConfigLines renders the bounds as config file entries.
func (r Result) ConfigLines() string {
	return fmt.Sprintf("MAG_X_MIN=%g\nMAG_X_MAX=%g\nMAG_Y_MIN=%g\nMAG_Y_MAX=%g\n",
		r.Bounds.XMin, r.Bounds.XMax, r.Bounds.YMin, r.Bounds.YMax)
}
