// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"fmt"
	"io"
	"log"
	"sync"

	"go.bug.st/serial"
)

// drainer is implemented by serial.Port.
type drainer interface {
	Drain() error
}

// LoRa writes frames to a UART LoRa modem in transparent mode.
type LoRa struct {
	mu   sync.Mutex
	port io.WriteCloser
}

// NewLoRa wraps an already open port.
func NewLoRa(port io.WriteCloser) *LoRa {
	return &LoRa{port: port}
}

// OpenLoRa opens the modem's UART at baud, 8N1.
func OpenLoRa(path string, baud int) (*LoRa, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("lora: open %s: %w", path, err)
	}
	log.Printf("lora: modem opened on %s at %d baud", path, baud)
	return NewLoRa(port), nil
}

// Send writes the whole frame and waits for the UART to drain, so the
// modem sees it as one packet.
func (l *LoRa) Send(frame []byte) error {
	if len(frame) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(frame))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for written := 0; written < len(frame); {
		n, err := l.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("lora: write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("lora: write: %w", io.ErrShortWrite)
		}
		written += n
	}
	if d, ok := l.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("lora: drain: %w", err)
		}
	}
	return nil
}

func (l *LoRa) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port.Close()
}
