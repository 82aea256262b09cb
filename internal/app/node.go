// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/display"
	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/gps"
	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/node"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
	"github.com/relabs-tech/lora_tracker/internal/sensors"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

// Bench start position for mock runs.
const mockLat, mockLon = 45.070312, 7.686856

// closers releases hardware in reverse order of opening.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

// RunNode starts the sensor node with the global configuration and runs
// until ctx is cancelled. With mock set no hardware is touched and frames
// go to the configured transports, or nowhere if none are configured.
func RunNode(ctx context.Context, mock bool) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("node: configuration not loaded")
	}

	var open closers
	defer open.Close()

	cal := cfg.Calibration
	if cal == (heading.Calibration{}) {
		if !mock {
			return fmt.Errorf("node: %w: MAG_* bounds or CALIBRATION_FILE required", heading.ErrCalibrationDegenerate)
		}
		cal = heading.Calibration{XMin: -27.64, XMax: 43.36, YMin: -47.82, YMax: 24.36}
		log.Println("node: no calibration configured, using bench defaults")
	}
	est, err := heading.NewEstimator(cal, cfg.DeclinationRad, cfg.HeadingBatchSize, cfg.HeadingDelay())
	if err != nil {
		return fmt.Errorf("node: %w", err)
	}

	deps := node.Deps{
		Estimator: est,
		Sampler:   ranging.NewSampler(cfg.SoundSpeed),
	}

	if mock {
		deps.Position = sensors.NewMockPosition(mockLat, mockLon)
		deps.Compass = sensors.NewMockCompass(cal)
		deps.Ranger = &sensors.MockRanger{}
		log.Println("node: using mock sensors")
	} else {
		tracker := gps.NewTracker()
		port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return err
		}
		open = append(open, port)
		go func() {
			if err := tracker.Run(ctx, port); err != nil && ctx.Err() == nil {
				log.Printf("gps: reader stopped: %v", err)
			}
		}()
		deps.Position = tracker

		compass, bus, err := sensors.OpenHMC5883L(cfg.MagI2CBus, cfg.MagI2CAddr)
		if err != nil {
			return err
		}
		open = append(open, bus)
		deps.Compass = compass

		ranger, err := sensors.OpenUltrasonic(cfg.TrigPin, cfg.EchoPin, cfg.PulseTimeout())
		if err != nil {
			return err
		}
		deps.Ranger = ranger
	}

	var cipher *framecipher.Cipher
	if cfg.Encrypt {
		cipher, err = framecipher.New(cfg.CipherKey)
		if err != nil {
			return err
		}
		open = append(open, cipher)
		deps.Sealer = cipher
		log.Println("node: frames encrypted with AES-128")
	} else {
		deps.Sealer = framecipher.Plain{}
		log.Println("node: frames sent as plain text")
	}

	tx, err := openTransports(cfg)
	if err != nil {
		return err
	}
	open = append(open, tx)
	deps.Transport = tx

	if cfg.DisplayEnabled && !mock {
		d, bus, err := display.Open(cfg.DisplayI2CBus)
		if err != nil {
			// The screen is optional.
			log.Printf("node: display disabled: %v", err)
		} else {
			open = append(open, bus)
			deps.Status = d
		}
	}

	n, err := node.New(node.Config{
		PathInterval:   time.Duration(cfg.PathInterval) * time.Millisecond,
		ObsInterval:    time.Duration(cfg.ObsInterval) * time.Millisecond,
		ObsMinDistance: cfg.ObsMinDistance,
		ObsMaxDistance: cfg.ObsMaxDistance,
		Encrypted:      cfg.Encrypt,
	}, deps)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}

// openTransports builds the fan-out over every configured transport.
func openTransports(cfg *config.Config) (*transport.Fanout, error) {
	var ts []transport.Transport
	if cfg.HasTransport("lora") {
		l, err := transport.OpenLoRa(cfg.LoRaSerialPort, cfg.LoRaBaudRate)
		if err != nil {
			return nil, err
		}
		ts = append(ts, l)
	}
	if cfg.HasTransport("mqtt") {
		client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNode)
		if err != nil {
			transport.NewFanout(ts...).Close()
			return nil, err
		}
		ts = append(ts, transport.NewMQTT(client, cfg.TopicFrames))
	}
	if len(ts) == 0 {
		log.Println("node: no transports configured, frames are dropped")
	}
	return transport.NewFanout(ts...), nil
}
