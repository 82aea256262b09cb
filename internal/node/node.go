// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package node runs the telemetry cycles of the sensor node: a PATH record
// with position and bearing, and an OBS record with the ultrasonic range.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/gps"
	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
	"github.com/relabs-tech/lora_tracker/internal/record"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

// ErrInvalidFix means the GPS has no usable position yet. The PATH cycle
// is skipped and nothing is sent.
var ErrInvalidFix = errors.New("node: no valid position fix")

// DefaultInterval is the default period of both cycles.
const DefaultInterval = time.Second

// PositionSource returns the latest known fix. gps.Tracker implements it.
type PositionSource interface {
	Fix() gps.Fix
}

// StatusSink receives a status snapshot after every cycle.
type StatusSink interface {
	Show(Status) error
}

// Status is what the node last measured and sent.
type Status struct {
	FixValid            bool
	Latitude, Longitude float64

	HaveHeading bool
	Heading     heading.Bearing

	HaveRange bool
	Range     ranging.Reading
	Obstacle  bool // Range inside the obstacle window

	Sent, Failed uint64
	Encrypted    bool
}

// Stats counts cycle outcomes.
type Stats struct {
	PathSent     uint64
	ObstacleSent uint64
	Skipped      uint64 // PATH cycles without a fix
	Failed       uint64
}

// Config holds the cycle timing and the obstacle window.
type Config struct {
	PathInterval   time.Duration
	ObsInterval    time.Duration
	ObsMinDistance float64 // cm
	ObsMaxDistance float64 // cm
	Encrypted      bool    // shown on the status screen only
}

// Deps are the collaborators the node drives. Status is optional.
type Deps struct {
	Position  PositionSource
	Compass   heading.Source
	Estimator *heading.Estimator
	Ranger    ranging.EchoSource
	Sampler   ranging.Sampler
	Sealer    framecipher.Sealer
	Transport transport.Transport
	Status    StatusSink
}

// Node owns one telemetry loop.
type Node struct {
	cfg Config
	d   Deps

	// sendMu keeps one frame at a time on the radio.
	sendMu sync.Mutex

	mu     sync.Mutex
	stats  Stats
	status Status
}

// New checks the collaborators and applies interval defaults.
func New(cfg Config, d Deps) (*Node, error) {
	switch {
	case d.Position == nil:
		return nil, errors.New("node: missing position source")
	case d.Compass == nil || d.Estimator == nil:
		return nil, errors.New("node: missing compass or heading estimator")
	case d.Ranger == nil:
		return nil, errors.New("node: missing ranger")
	case d.Sealer == nil:
		return nil, errors.New("node: missing frame sealer")
	case d.Transport == nil:
		return nil, errors.New("node: missing transport")
	}
	if cfg.PathInterval <= 0 {
		cfg.PathInterval = DefaultInterval
	}
	if cfg.ObsInterval <= 0 {
		cfg.ObsInterval = DefaultInterval
	}
	if d.Sampler.SpeedOfSound <= 0 {
		d.Sampler = ranging.NewSampler(0)
	}
	return &Node{cfg: cfg, d: d, status: Status{Encrypted: cfg.Encrypted}}, nil
}

// PathCycle sends one PATH record. It returns ErrInvalidFix, having sent
// nothing, while the GPS has no fix.
func (n *Node) PathCycle() (record.Record, error) {
	fix := n.d.Position.Fix()
	if !fix.Valid() {
		n.mu.Lock()
		n.stats.Skipped++
		n.status.FixValid = false
		n.mu.Unlock()
		return record.Record{}, ErrInvalidFix
	}

	b, err := n.d.Estimator.Read(n.d.Compass)
	if err != nil {
		n.fail()
		return record.Record{}, fmt.Errorf("node: path: %w", err)
	}

	rec := record.Path(fix.Latitude, fix.Longitude, b)
	n.mu.Lock()
	n.status.FixValid = true
	n.status.Latitude, n.status.Longitude = fix.Latitude, fix.Longitude
	n.status.HaveHeading, n.status.Heading = true, b
	n.mu.Unlock()

	if err := n.send(rec); err != nil {
		n.fail()
		return rec, fmt.Errorf("node: path: %w", err)
	}
	n.mu.Lock()
	n.stats.PathSent++
	n.mu.Unlock()
	return rec, nil
}

// ObstacleCycle sends one OBS record. A missing echo is sent as the
// NoEcho sentinel, not reported as an error.
func (n *Node) ObstacleCycle() (record.Record, error) {
	echo, ok, err := n.d.Ranger.Ping()
	if err != nil {
		n.fail()
		return record.Record{}, fmt.Errorf("node: obstacle: %w", err)
	}
	r := n.d.Sampler.Measure(echo, ok)
	rec := record.Obstacle(r)

	n.mu.Lock()
	n.status.HaveRange, n.status.Range = true, r
	n.status.Obstacle = r.Within(n.cfg.ObsMinDistance, n.cfg.ObsMaxDistance)
	n.mu.Unlock()

	if err := n.send(rec); err != nil {
		n.fail()
		return rec, fmt.Errorf("node: obstacle: %w", err)
	}
	n.mu.Lock()
	n.stats.ObstacleSent++
	n.mu.Unlock()
	return rec, nil
}

func (n *Node) send(rec record.Record) error {
	frame, err := n.d.Sealer.Seal([]byte(rec.String()))
	if err != nil {
		return err
	}
	if len(frame) > transport.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", transport.ErrPacketTooLarge, len(frame))
	}
	n.sendMu.Lock()
	defer n.sendMu.Unlock()
	return n.d.Transport.Send(frame)
}

func (n *Node) fail() {
	n.mu.Lock()
	n.stats.Failed++
	n.mu.Unlock()
}

// Stats returns a copy of the counters.
func (n *Node) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

// Status returns the latest snapshot.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.status
	s.Sent = n.stats.PathSent + n.stats.ObstacleSent
	s.Failed = n.stats.Failed
	return s
}

// Run drives both cycles until ctx is done. Cycle errors are logged and
// the next cycle runs as usual.
func (n *Node) Run(ctx context.Context) error {
	pathTick := time.NewTicker(n.cfg.PathInterval)
	defer pathTick.Stop()
	obsTick := time.NewTicker(n.cfg.ObsInterval)
	defer obsTick.Stop()

	log.Printf("node: running, path every %v, obstacle every %v", n.cfg.PathInterval, n.cfg.ObsInterval)

	waiting := false
	for {
		select {
		case <-ctx.Done():
			st := n.Stats()
			log.Printf("node: stopping, sent %d path / %d obstacle, %d skipped, %d failed",
				st.PathSent, st.ObstacleSent, st.Skipped, st.Failed)
			return nil

		case <-pathTick.C:
			rec, err := n.PathCycle()
			switch {
			case errors.Is(err, ErrInvalidFix):
				if !waiting {
					log.Println("node: waiting for GPS fix")
					waiting = true
				}
			case err != nil:
				log.Printf("node: %v", err)
			default:
				if waiting {
					log.Println("node: GPS fix acquired")
					waiting = false
				}
				log.Printf("node: sent %s", rec)
			}
			n.publish()

		case <-obsTick.C:
			rec, err := n.ObstacleCycle()
			if err != nil {
				log.Printf("node: %v", err)
			} else {
				log.Printf("node: sent %s", rec)
			}
			n.publish()
		}
	}
}

func (n *Node) publish() {
	if n.d.Status == nil {
		return
	}
	if err := n.d.Status.Show(n.Status()); err != nil {
		log.Printf("node: status display: %v", err)
	}
}
