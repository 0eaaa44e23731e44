// Package seal computes artifact checksums and obtains signatures over them.
package seal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrChecksumMismatch is returned when an artifact does not match its checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Checksum returns the hex SHA-256 of data, prefixed "sha256:".
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Verify reports ErrChecksumMismatch unless Checksum(data) equals want.
// A want without the "sha256:" prefix is accepted.
func Verify(data []byte, want string) error {
	got := Checksum(data)
	if !strings.HasPrefix(want, "sha256:") {
		want = "sha256:" + want
	}
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
	}
	return nil
}

// Signer produces a signature for a tarball checksum. The registry stores
// the result without verifying it.
type Signer interface {
	Sign(ctx context.Context, checksum string) ([]byte, error)
}

// HMACSigner signs with HMAC-SHA256 under a shared key.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner returns a signer using key. An empty key is an error.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("seal: empty signing key")
	}
	return &HMACSigner{key: append([]byte(nil), key...)}, nil
}

// Sign implements Signer.
func (s *HMACSigner) Sign(ctx context.Context, checksum string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(checksum))
	return m.Sum(nil), nil
}

// Valid reports whether sig is this signer's signature for checksum.
func (s *HMACSigner) Valid(checksum string, sig []byte) bool {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(checksum))
	return hmac.Equal(m.Sum(nil), sig)
}
