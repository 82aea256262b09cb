// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package heading turns raw magnetometer samples into a compass bearing.
package heading

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// DefaultBatchSize is the number of samples averaged per bearing.
const DefaultBatchSize = 10

// DefaultSampleDelay is the spacing between two raw reads of one batch.
const DefaultSampleDelay = 10 * time.Millisecond

var (
	ErrCalibrationDegenerate = errors.New("heading: calibration span is zero")
	ErrNoSamples             = errors.New("heading: no samples")
)

// Sample is a single horizontal magnetometer reading in sensor-native units.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bearing is a compass heading in whole degrees, clockwise from north.
type Bearing int

// Calibration holds the hard-iron bounds of the X and Y axes.
type Calibration struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Validate rejects bounds that would divide by zero during normalisation.
func (c Calibration) Validate() error {
	if !(c.XMax > c.XMin) {
		return fmt.Errorf("%w: x [%g, %g]", ErrCalibrationDegenerate, c.XMin, c.XMax)
	}
	if !(c.YMax > c.YMin) {
		return fmt.Errorf("%w: y [%g, %g]", ErrCalibrationDegenerate, c.YMin, c.YMax)
	}
	return nil
}

// Normalize maps a raw sample into [-1, 1] on each axis.
func (c Calibration) Normalize(s Sample) (x, y float64) {
	x = ((s.X-c.XMin)/(c.XMax-c.XMin))*2 - 1
	y = ((s.Y-c.YMin)/(c.YMax-c.YMin))*2 - 1
	return x, y
}

// Estimate averages the declination-corrected angle of every sample and
// converts the mean to a truncated bearing.
//
// The mean is wrapped into [0, 2π) with a single correction in each
// direction; angles further out are left as they are.
func Estimate(samples []Sample, cal Calibration, declination float64) (Bearing, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if err := cal.Validate(); err != nil {
		return 0, err
	}

	angles := make([]float64, len(samples))
	for i, s := range samples {
		x, y := cal.Normalize(s)
		angles[i] = math.Atan2(y, x) + declination
	}

	h := floats.Sum(angles) / float64(len(angles))
	if h < 0 {
		h += 2 * math.Pi
	}
	if h >= 2*math.Pi {
		h -= 2 * math.Pi
	}

	return Bearing(h * 180.0 / math.Pi), nil
}
