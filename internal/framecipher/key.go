package framecipher

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// Key is the shared symmetric key. It is loaded once at startup and must
// match the receiver's key byte for byte.
type Key [KeySize]byte

// ParseKey accepts either 32 hex digits or exactly 16 raw characters.
func ParseKey(s string) (*Key, error) {
	s = strings.TrimSpace(s)

	var k Key
	switch len(s) {
	case 2 * KeySize:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("framecipher: invalid hex key: %w", err)
		}
		copy(k[:], b)
	case KeySize:
		copy(k[:], s)
	default:
		return nil, fmt.Errorf("framecipher: key must be %d raw bytes or %d hex digits, got %d characters", KeySize, 2*KeySize, len(s))
	}
	return &k, nil
}

// Zeroize overwrites the key material.
func (k *Key) Zeroize() {
	if k == nil {
		return
	}
	for i := range k {
		k[i] = 0
	}
}

// String never prints key material.
func (k *Key) String() string { return "framecipher.Key(redacted)" }
