// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided hard-iron calibration of the HMC5883L compass.
//
// Rotate the node slowly through a full turn, level, away from metal. The
// sweep stops on ENTER or after -duration. The X/Y min/max bounds are
// written as JSON (set CALIBRATION_FILE to use it) and printed as config
// lines.
//
// Run:
//
//	go run ./cmd/calibration -config lora_tracker_config.txt
//	go run ./cmd/calibration -mock
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/calibration"
	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/sensors"
)

const sampleHz = 50 // best effort

func main() {
	configPath := flag.String("config", "./lora_tracker_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "sweep a simulated compass")
	duration := flag.Duration("duration", 60*time.Second, "maximum sweep duration")
	out := flag.String("out", "", "output file (default mag_calibration_<time>.json)")
	flag.Parse()

	var src heading.Source
	if *mock {
		src = sensors.NewMockCompass(heading.Calibration{XMin: -27.64, XMax: 43.36, YMin: -47.82, YMax: 24.36})
	} else {
		if err := config.InitGlobal(*configPath); err != nil {
			fatal(fmt.Errorf("failed to load config: %w", err))
		}
		cfg := config.Get()
		defer config.Shutdown()

		compass, bus, err := sensors.OpenHMC5883L(cfg.MagI2CBus, cfg.MagI2CAddr)
		if err != nil {
			fatal(err)
		}
		defer bus.Close()
		src = compass
	}

	in := bufio.NewReader(os.Stdin)
	fmt.Println("=== Compass calibration ===")
	fmt.Println("Keep the node level and rotate it slowly through at least one full turn.")
	waitEnter(in, "Press ENTER to start...")
	fmt.Printf("Sampling at %d Hz. Press ENTER when done (timeout %v).\n", sampleHz, *duration)

	sweep, note, err := capture(in, src, *duration)
	if err != nil {
		fatal(err)
	}
	if note != "" {
		fmt.Println(note)
	}

	res, err := sweep.Result()
	if err != nil {
		fatal(fmt.Errorf("sweep of %d samples unusable: %w", sweep.Len(), err))
	}

	fmt.Printf("\nSamples:    %d\n", res.SampleCount)
	fmt.Printf("X range:    [%.2f, %.2f] µT\n", res.Bounds.XMin, res.Bounds.XMax)
	fmt.Printf("Y range:    [%.2f, %.2f] µT\n", res.Bounds.YMin, res.Bounds.YMax)
	fmt.Printf("Offset:     (%.2f, %.2f) µT\n", res.OffsetX, res.OffsetY)
	fmt.Printf("Confidence: %.0f%%\n", res.Confidence)
	if res.Confidence < 70 {
		fmt.Println("Warning: axes are unbalanced, the turn may have been incomplete or tilted.")
	}

	name := *out
	if name == "" {
		name = fmt.Sprintf("mag_calibration_%s.json", time.Now().Format("2006-01-02T15-04-05Z07-00"))
	}
	if err := calibration.Save(name, res); err != nil {
		fatal(err)
	}
	fmt.Printf("\nWrote: %s\n\nConfig lines:\n%s", name, res.ConfigLines())
}

// capture samples src until ENTER or timeout.
func capture(in *bufio.Reader, src heading.Source, maxDur time.Duration) (*calibration.Sweep, string, error) {
	deadline := time.Now().Add(maxDur)

	stopCh := make(chan struct{}, 1)
	go func() {
		_, _ = in.ReadString('\n')
		stopCh <- struct{}{}
	}()

	period := time.Second / sampleHz
	sweep := calibration.NewSweep(int(maxDur / period))
	for {
		select {
		case <-stopCh:
			return sweep, "", nil
		default:
			if time.Now().After(deadline) {
				return sweep, "stopped by timeout", nil
			}
			s, err := src.ReadMag()
			if err != nil {
				return nil, "", err
			}
			sweep.Add(s)
			if sweep.Len()%sampleHz == 0 {
				fmt.Printf("\r%d samples", sweep.Len())
			}
			time.Sleep(period)
		}
	}
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
