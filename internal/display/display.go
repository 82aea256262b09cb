// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the node status on a 128x64 SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/lora_tracker/internal/node"
)

const (
	width  = 128
	height = 64
)

// device is the part of *ssd1306.Dev the display uses.
type device interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display shows node.Status snapshots. Show is safe for concurrent use.
type Display struct {
	mu  sync.Mutex
	dev device
}

// New wraps a drawing device.
func New(dev device) *Display {
	return &Display{dev: dev}
}

// Open initialises periph and the OLED on the named I²C bus.
func Open(busName string) (*Display, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on bus %q", busName)
	return New(dev), bus, nil
}

// Show renders s and pushes it to the device.
func (d *Display) Show(s node.Status) error {
	img := Render(s)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

// Render draws the four status lines into a 1-bit image.
func Render(s node.Status) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range Lines(s) {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

// Lines returns the text shown on screen. Face7x13 fits 18 characters per
// line; longer lines are clipped.
func Lines(s node.Status) []string {
	fix := "GPS: no fix"
	if s.FixValid {
		fix = fmt.Sprintf("%.5f %.5f", s.Latitude, s.Longitude)
	}

	hdg := "HDG: ---"
	if s.HaveHeading {
		hdg = fmt.Sprintf("HDG: %3d deg", s.Heading)
	}

	rng := "RNG: ---"
	switch {
	case !s.HaveRange:
	case s.Range.IsNoEcho():
		rng = "RNG: no echo"
	case s.Obstacle:
		rng = fmt.Sprintf("RNG: %.1fcm OBST", float64(s.Range))
	default:
		rng = fmt.Sprintf("RNG: %.1fcm", float64(s.Range))
	}

	mode := "PLN"
	if s.Encrypted {
		mode = "AES"
	}
	tx := fmt.Sprintf("TX:%d ERR:%d %s", s.Sent, s.Failed, mode)

	return []string{fix, hdg, rng, tx}
}
