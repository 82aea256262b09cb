// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Tracker parses NMEA sentences and keeps the latest fix.
type Tracker struct {
	mu      sync.RWMutex
	current Fix
	updates uint64
}

// NewTracker returns a tracker with no fix yet.
func NewTracker() *Tracker {
	return &Tracker{current: Fix{Validity: "V"}}
}

// Fix returns a copy of the latest fix.
func (t *Tracker) Fix() Fix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Updates returns how many RMC/GGA sentences have been applied.
func (t *Tracker) Updates() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updates
}

// HandleLine applies one NMEA sentence. Lines that are not sentences, fail
// their checksum, or carry unused types are ignored.
func (t *Tracker) HandleLine(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		t.current.Time = m.Time.String()
		t.current.Date = m.Date.String()
		t.current.Validity = string(m.Validity)
		t.current.SpeedKnots = m.Speed
		t.current.CourseDeg = m.Course
		if m.Validity == nmea.ValidRMC {
			t.current.Latitude = m.Latitude
			t.current.Longitude = m.Longitude
		}
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		t.current.Quality = m.FixQuality
		t.current.Satellites = m.NumSatellites
		if m.FixQuality != nmea.Invalid {
			t.current.Latitude = m.Latitude
			t.current.Longitude = m.Longitude
		}
	default:
		return false
	}
	t.updates++
	return true
}

// Run reads sentences from r until it fails or ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			t.HandleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}
	}
}

// OpenSerial opens the GPS receiver's UART.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rw, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", port, baud)
	return rw, nil
}
