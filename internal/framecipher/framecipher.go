// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package framecipher pads record lines to the AES block size and encrypts
// them block by block before they go out on the radio.
//
// Blocks are encrypted independently with the same key: no IV and no
// chaining. Identical plaintext blocks therefore produce identical
// ciphertext blocks and the same line always encrypts to the same frame.
// The paired receiver decrypts exactly this scheme, so it must stay as is.
package framecipher

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
)

// BlockSize is the cipher block size in bytes.
const BlockSize = aes.BlockSize

// MaxFrameSize is the largest frame handed to the radio. It is the biggest
// multiple of BlockSize that fits a 255 byte LoRa payload.
const MaxFrameSize = 240

// MaxPlaintextSize is the longest line that still pads into MaxFrameSize.
const MaxPlaintextSize = MaxFrameSize - 1

var (
	ErrMessageTooLong = errors.New("framecipher: message too long")
	ErrBadFrame       = errors.New("framecipher: frame is not a whole number of blocks")
	ErrBadPadding     = errors.New("framecipher: invalid padding")
	ErrClosed         = errors.New("framecipher: cipher closed")
)

// Sealer turns a plaintext line into the frame handed to the transport.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// Opener is the receiver-side inverse of Sealer.
type Opener interface {
	Open(frame []byte) ([]byte, error)
}

// Pad appends PKCS#7 padding. It always adds between 1 and blockSize bytes.
func Pad(p []byte, blockSize int) []byte {
	n := blockSize - len(p)%blockSize
	out := make([]byte, len(p), len(p)+n)
	copy(out, p)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

// Unpad strips and checks PKCS#7 padding.
func Unpad(p []byte, blockSize int) ([]byte, error) {
	if len(p) == 0 || len(p)%blockSize != 0 {
		return nil, ErrBadFrame
	}
	n := int(p[len(p)-1])
	if n == 0 || n > blockSize || n > len(p) {
		return nil, ErrBadPadding
	}
	for _, b := range p[len(p)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return p[:len(p)-n], nil
}

// Cipher is an AES-128 frame cipher in block-mode-without-chaining.
// It is safe for concurrent use.
type Cipher struct {
	mu    sync.RWMutex
	key   Key
	block cipher.Block
}

// New copies key into a new Cipher. The caller may zeroize its own copy
// afterwards.
func New(key *Key) (*Cipher, error) {
	if key == nil {
		return nil, errors.New("framecipher: nil key")
	}
	c := &Cipher{key: *key}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("framecipher: %w", err)
	}
	c.block = block
	return c, nil
}

// Seal pads plaintext and encrypts it one block at a time.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxPlaintextSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrMessageTooLong, len(plaintext), MaxPlaintextSize)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.block == nil {
		return nil, ErrClosed
	}

	var buf [MaxFrameSize]byte
	n := copy(buf[:], plaintext)
	pad := BlockSize - n%BlockSize
	for i := 0; i < pad; i++ {
		buf[n+i] = byte(pad)
	}
	total := n + pad

	out := make([]byte, total)
	for i := 0; i < total; i += BlockSize {
		c.block.Encrypt(out[i:i+BlockSize], buf[i:i+BlockSize])
	}
	return out, nil
}

// Open decrypts a frame produced by Seal and strips its padding.
func (c *Cipher) Open(frame []byte) ([]byte, error) {
	if len(frame) == 0 || len(frame)%BlockSize != 0 {
		return nil, ErrBadFrame
	}
	if len(frame) > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrMessageTooLong, len(frame))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.block == nil {
		return nil, ErrClosed
	}

	out := make([]byte, len(frame))
	for i := 0; i < len(frame); i += BlockSize {
		c.block.Decrypt(out[i:i+BlockSize], frame[i:i+BlockSize])
	}
	return Unpad(out, BlockSize)
}

// Close zeroizes the key copy. Seal and Open fail with ErrClosed afterwards.
func (c *Cipher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key.Zeroize()
	c.block = nil
	return nil
}

// Plain is the pass-through variant used when the receiver does not decrypt.
type Plain struct{}

// Seal returns the text bytes unmodified, without padding.
func (Plain) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrMessageTooLong, len(plaintext), MaxFrameSize)
	}
	return append([]byte(nil), plaintext...), nil
}

// Open returns the frame unmodified.
func (Plain) Open(frame []byte) ([]byte, error) {
	return append([]byte(nil), frame...), nil
}

// EncryptFrame pads and encrypts plaintext with key in one call.
func EncryptFrame(plaintext []byte, key *Key) ([]byte, error) {
	c, err := New(key)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Seal(plaintext)
}

// PlainFrame returns the bytes of text as the frame.
func PlainFrame(text string) []byte {
	return []byte(text)
}
