// Package ranging converts ultrasonic echo durations into distances.
package ranging

import "time"

// NoEcho is the reading reported when the echo pulse timed out.
const NoEcho Reading = 999

// DefaultSpeedOfSound is the speed of sound in air in m/s.
const DefaultSpeedOfSound = 340.1

// DefaultPulseTimeout bounds how long the ranger waits for an echo.
const DefaultPulseTimeout = 12000 * time.Microsecond

// Reading is a distance in centimetres, or NoEcho.
type Reading float64

// IsNoEcho reports whether r is the timeout sentinel.
func (r Reading) IsNoEcho() bool { return r == NoEcho }

// Within reports whether r is a real echo inside [min, max] centimetres.
func (r Reading) Within(min, max float64) bool {
	if r.IsNoEcho() {
		return false
	}
	return float64(r) >= min && float64(r) <= max
}

// EchoSource triggers one ping and reports the round-trip echo duration.
// ok is false when no echo arrived before the pulse timeout.
type EchoSource interface {
	Ping() (echo time.Duration, ok bool, err error)
}

// Sampler turns echo durations into Readings. It never retries.
type Sampler struct {
	SpeedOfSound float64 // m/s
}

// NewSampler returns a Sampler, falling back to DefaultSpeedOfSound.
func NewSampler(speedOfSound float64) Sampler {
	if speedOfSound <= 0 {
		speedOfSound = DefaultSpeedOfSound
	}
	return Sampler{SpeedOfSound: speedOfSound}
}

// Measure converts a round-trip echo into a one-way distance.
func (s Sampler) Measure(echo time.Duration, ok bool) Reading {
	if !ok {
		return NoEcho
	}
	us := float64(echo) / float64(time.Microsecond)
	oneWay := (us / 1e6) / 2
	return Reading(s.SpeedOfSound * oneWay * 100)
}
