package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// TimeoutReader is a reader whose Read returns (0, nil) after a timeout.
// serial.Port behaves this way once SetReadTimeout is called.
type TimeoutReader interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// PacketReader splits the receiving modem's byte stream into packets. The
// modem writes each received packet in one burst, so a silence of at least
// gap ends a packet.
type PacketReader struct {
	r   TimeoutReader
	buf [MaxPacketSize]byte
}

// NewPacketReader sets the read timeout on r to gap.
func NewPacketReader(r TimeoutReader, gap time.Duration) (*PacketReader, error) {
	if err := r.SetReadTimeout(gap); err != nil {
		return nil, fmt.Errorf("lora: set read timeout: %w", err)
	}
	return &PacketReader{r: r}, nil
}

// OpenPacketReader opens the receiving modem's UART.
func OpenPacketReader(path string, baud int, gap time.Duration) (*PacketReader, io.Closer, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, nil, fmt.Errorf("lora: open %s: %w", path, err)
	}
	pr, err := NewPacketReader(port, gap)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	return pr, port, nil
}

// Next blocks until a full packet has arrived or ctx is done. Bytes past
// MaxPacketSize end the packet early.
func (p *PacketReader) Next(ctx context.Context) ([]byte, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := p.r.Read(p.buf[n:])
		if err != nil {
			if n > 0 && err == io.EOF {
				break
			}
			return nil, err
		}
		n += m
		if n == len(p.buf) || (m == 0 && n > 0) {
			break
		}
	}
	return append([]byte(nil), p.buf[:n]...), nil
}
