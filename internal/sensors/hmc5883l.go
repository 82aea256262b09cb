// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/lora_tracker/internal/heading"
)

// HMC5883L register map.
const (
	hmcRegConfigA = 0x00
	hmcRegConfigB = 0x01
	hmcRegMode    = 0x02
	hmcRegDataX   = 0x03
	hmcRegID      = 0x0A

	hmcConfigA8Avg15Hz = 0x70
	hmcGain1_3Ga       = 0x20
	hmcModeContinuous  = 0x00

	// LSB per gauss at ±1.3 Ga; 1 gauss = 100 µT.
	hmcLSBPerGauss = 1090.0
)

// HMC5883L reads the X/Y field of an HMC5883L compass over I²C, in µT.
type HMC5883L struct {
	dev *i2c.Dev
}

// NewHMC5883L configures the compass on an open bus.
func NewHMC5883L(bus i2c.Bus, addr uint16) (*HMC5883L, error) {
	d := &i2c.Dev{Addr: addr, Bus: bus}

	id := make([]byte, 3)
	if err := d.Tx([]byte{hmcRegID}, id); err != nil {
		return nil, fmt.Errorf("hmc5883l: read id: %w", err)
	}
	if string(id) != "H43" {
		return nil, fmt.Errorf("hmc5883l: unexpected id %q at 0x%02X", id, addr)
	}

	for _, w := range [][]byte{
		{hmcRegConfigA, hmcConfigA8Avg15Hz},
		{hmcRegConfigB, hmcGain1_3Ga},
		{hmcRegMode, hmcModeContinuous},
	} {
		if err := d.Tx(w, nil); err != nil {
			return nil, fmt.Errorf("hmc5883l: write reg 0x%02X: %w", w[0], err)
		}
	}
	return &HMC5883L{dev: d}, nil
}

// OpenHMC5883L initialises periph and opens the named I²C bus.
func OpenHMC5883L(busName string, addr uint16) (*HMC5883L, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("hmc5883l: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("hmc5883l: i2c open failed on bus %q: %w", busName, err)
	}
	m, err := NewHMC5883L(bus, addr)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	log.Printf("hmc5883l: compass ready on bus %q at 0x%02X", busName, addr)
	return m, bus, nil
}

// ReadMag implements heading.Source.
func (m *HMC5883L) ReadMag() (heading.Sample, error) {
	raw := make([]byte, 6)
	if err := m.dev.Tx([]byte{hmcRegDataX}, raw); err != nil {
		return heading.Sample{}, fmt.Errorf("hmc5883l: read data: %w", err)
	}
	// Output order is X, Z, Y, big endian.
	x := int16(binary.BigEndian.Uint16(raw[0:2]))
	y := int16(binary.BigEndian.Uint16(raw[4:6]))
	return heading.Sample{
		X: float64(x) / hmcLSBPerGauss * 100,
		Y: float64(y) / hmcLSBPerGauss * 100,
	}, nil
}
