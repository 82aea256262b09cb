// Package transport hands frames to the radio link. Delivery is best
// effort: there is no acknowledgement and nothing is retried.
package transport

import (
	"errors"
	"fmt"
	"sync"
)

// MaxPacketSize is the largest LoRa payload.
const MaxPacketSize = 255

var ErrPacketTooLarge = errors.New("transport: packet too large")

// Transport sends one frame per call. One frame is one radio packet.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Fanout sends every frame on all of its transports.
type Fanout struct {
	transports []Transport
}

// NewFanout returns a Fanout over ts.
func NewFanout(ts ...Transport) *Fanout {
	return &Fanout{transports: ts}
}

// Send tries every transport and joins their errors.
func (f *Fanout) Send(frame []byte) error {
	var errs []error
	for i, t := range f.transports {
		if err := t.Send(frame); err != nil {
			errs = append(errs, fmt.Errorf("transport %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all transports.
func (f *Fanout) Close() error {
	var errs []error
	for _, t := range f.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Recorder keeps every frame it is given. Used for dry runs and tests.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	Err    error
}

func (r *Recorder) Send(frame []byte) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *Recorder) Close() error { return nil }

// Frames returns a copy of what was sent so far.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}
