// Package groundstation receives frames from the node, decodes them back
// into records, stores them and streams them to browsers.
package groundstation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/record"
)

var ErrEmptyFrame = errors.New("groundstation: empty frame")

// Decoder turns a received frame into a record.
type Decoder struct {
	opener framecipher.Opener
}

// NewDecoder uses opener to strip the frame cipher. Pass framecipher.Plain
// when the node sends plain text.
func NewDecoder(opener framecipher.Opener) *Decoder {
	return &Decoder{opener: opener}
}

// Decode returns the record and the line it was parsed from.
func (d *Decoder) Decode(frame []byte) (record.Record, string, error) {
	if len(frame) == 0 {
		return record.Record{}, "", ErrEmptyFrame
	}
	plain, err := d.opener.Open(frame)
	if err != nil {
		return record.Record{}, "", fmt.Errorf("groundstation: open frame: %w", err)
	}
	// Serial modems may add a line ending.
	line := strings.TrimRight(string(plain), "\r\n")
	rec, err := record.Parse(line)
	if err != nil {
		return record.Record{}, line, err
	}
	return rec, line, nil
}
