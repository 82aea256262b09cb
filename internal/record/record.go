// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record builds and parses the comma-separated telemetry lines sent
// over the radio link.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
)

// Kind tags the record variant. Its value is the first field of a line.
type Kind string

const (
	KindPath     Kind = "PATH"
	KindObstacle Kind = "OBS"
)

var (
	ErrUnknownKind = errors.New("record: unknown kind")
	ErrMalformed   = errors.New("record: malformed line")
)

// Record is either a PATH (position + heading) or an OBS (distance) record.
type Record struct {
	Kind      Kind            `json:"kind"`
	Latitude  float64         `json:"lat,omitempty"`
	Longitude float64         `json:"lon,omitempty"`
	Heading   heading.Bearing `json:"heading"`
	Distance  ranging.Reading `json:"distance,omitempty"`
}

// Path returns a PATH record. Callers must only build one from a valid fix.
func Path(lat, lon float64, h heading.Bearing) Record {
	return Record{Kind: KindPath, Latitude: lat, Longitude: lon, Heading: h}
}

// Obstacle returns an OBS record.
func Obstacle(d ranging.Reading) Record {
	return Record{Kind: KindObstacle, Distance: d}
}

// String renders the record as its wire line.
func (r Record) String() string {
	switch r.Kind {
	case KindPath:
		return FormatPath(r.Latitude, r.Longitude, r.Heading)
	case KindObstacle:
		return FormatObstacle(r.Distance)
	default:
		return ""
	}
}

// FormatPath renders "PATH,<lat>,<lon>,<heading>" with exactly six
// fractional digits on both coordinates.
func FormatPath(lat, lon float64, h heading.Bearing) string {
	var b strings.Builder
	b.Grow(40)
	b.WriteString(string(KindPath))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(lat, 'f', 6, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(lon, 'f', 6, 64))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(int(h)))
	return b.String()
}

// FormatObstacle renders "OBS,<distance>". The no-echo sentinel is written
// as the literal 999, real readings with two fractional digits.
func FormatObstacle(d ranging.Reading) string {
	if d.IsNoEcho() {
		return string(KindObstacle) + ",999"
	}
	return string(KindObstacle) + "," + strconv.FormatFloat(float64(d), 'f', 2, 64)
}

// Parse decodes a wire line back into a Record.
func Parse(line string) (Record, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")

	switch Kind(parts[0]) {
	case KindPath:
		if len(parts) != 4 {
			return Record{}, fmt.Errorf("%w: %q has %d fields, want 4", ErrMalformed, line, len(parts))
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: latitude %q: %v", ErrMalformed, parts[1], err)
		}
		lon, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: longitude %q: %v", ErrMalformed, parts[2], err)
		}
		h, err := strconv.Atoi(parts[3])
		if err != nil || h < 0 || h > 359 {
			return Record{}, fmt.Errorf("%w: heading %q", ErrMalformed, parts[3])
		}
		return Path(lat, lon, heading.Bearing(h)), nil

	case KindObstacle:
		if len(parts) != 2 {
			return Record{}, fmt.Errorf("%w: %q has %d fields, want 2", ErrMalformed, line, len(parts))
		}
		d, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || d < 0 {
			return Record{}, fmt.Errorf("%w: distance %q", ErrMalformed, parts[1])
		}
		return Obstacle(ranging.Reading(d)), nil

	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownKind, parts[0])
	}
}
