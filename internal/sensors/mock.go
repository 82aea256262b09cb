// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/gps"
	"github.com/relabs-tech/lora_tracker/internal/heading"
)

// MockCompass generates samples on the calibration ellipse, turning at
// 30°/s, with a little noise.
type MockCompass struct {
	cal   heading.Calibration
	start time.Time
	rng   *rand.Rand
}

// NewMockCompass creates a mock compass for bench runs.
func NewMockCompass(cal heading.Calibration) *MockCompass {
	return &MockCompass{cal: cal, start: time.Now(), rng: rand.New(rand.NewSource(1))}
}

func (m *MockCompass) ReadMag() (heading.Sample, error) {
	a := math.Mod(time.Since(m.start).Seconds()*30, 360) * math.Pi / 180
	cx, cy := (m.cal.XMax+m.cal.XMin)/2, (m.cal.YMax+m.cal.YMin)/2
	rx, ry := (m.cal.XMax-m.cal.XMin)/2, (m.cal.YMax-m.cal.YMin)/2
	return heading.Sample{
		X: cx + rx*math.Cos(a) + m.rng.NormFloat64()*0.2,
		Y: cy + ry*math.Sin(a) + m.rng.NormFloat64()*0.2,
	}, nil
}

// MockRanger alternates between an approaching obstacle and silence.
type MockRanger struct {
	mu sync.Mutex
	n  int
}

func (m *MockRanger) Ping() (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	if m.n%5 == 0 {
		return 0, false, nil
	}
	// 40 cm down to 10 cm, round trip at 340 m/s.
	cm := 40 - float64(m.n%5)*7.5
	return time.Duration(cm / 100 / 340 * 2 * float64(time.Second)), true, nil
}

// MockPosition walks north-east from a start point. It reports no fix
// for the first few calls, like a receiver that is still acquiring.
type MockPosition struct {
	mu       sync.Mutex
	lat, lon float64
	calls    int
	Acquire  int
}

// NewMockPosition starts at lat, lon.
func NewMockPosition(lat, lon float64) *MockPosition {
	return &MockPosition{lat: lat, lon: lon, Acquire: 3}
}

func (m *MockPosition) Fix() gps.Fix {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.Acquire {
		return gps.Fix{Validity: "V"}
	}
	m.lat += 0.00001
	m.lon += 0.00001
	return gps.Fix{
		Time:      time.Now().UTC().Format("15:04:05"),
		Latitude:  m.lat,
		Longitude: m.lon,
		Validity:  "A",
		Quality:   "1",
	}
}
