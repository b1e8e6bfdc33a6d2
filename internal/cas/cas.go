// Package cas provides BLAKE3 content digests and the file-backed,
// deduplicating blob store that save and restore are built on.
package cas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// HexLen is the length of a digest in hexadecimal form.
const HexLen = 64

// ErrInvalidHash is returned when a string is not a well-formed digest.
var ErrInvalidHash = errors.New("invalid digest")

// Hash represents a BLAKE3-256 hash value.
type Hash [32]byte

// String returns the hexadecimal representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first eight hex characters, for display.
func (h Hash) Short() string {
	return h.String()[:8]
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText encodes the hash as lowercase hex so JSON records stay readable.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex digest.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 64 character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != HexLen {
		return h, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidHash, s, len(s), HexLen)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %q: %v", ErrInvalidHash, s, err)
	}
	return h, nil
}

// SumB3 computes the BLAKE3 hash of the given data.
func SumB3(data []byte) Hash {
	return blake3.Sum256(data)
}

// HashReader streams r through BLAKE3 and returns the digest and the number
// of bytes consumed.
func HashReader(r io.Reader) (Hash, int64, error) {
	hasher := blake3.New(32, nil)
	n, err := io.Copy(hasher, r)
	if err != nil {
		return Hash{}, n, err
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h, n, nil
}

// HashFile computes the digest of the file at path without loading it into
// memory.
func HashFile(path string) (Hash, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h, n, err := HashReader(f)
	if err != nil {
		return Hash{}, 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return h, n, nil
}
