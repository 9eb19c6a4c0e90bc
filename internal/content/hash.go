package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainValue      = "weft/value/v1"
	DomainResource   = "weft/resource/v1"
	DomainProgram    = "weft/program/v1"
	DomainEffectType = "weft/effect-type/v1"
	DomainEffect     = "weft/effect/v1"
	DomainTrace      = "weft/trace/v1"
)

// HashSize is the digest width in bytes.
const HashSize = 32

// Hash is a 32-byte content address.
//
// The zero Hash is reserved as "absent" and is never produced by Sum.
type Hash [HashSize]byte

// Sum computes the domain-separated digest of data.
// Format: SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func Sum(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether h is the reserved absent hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters, for log output.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

// Compare orders hashes lexicographically by byte value.
// Used for deterministic map serialization.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// ParseHash decodes a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash: %w", err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("parse hash: expected %d bytes, got %d", HashSize, len(raw))
	}
	var out Hash
	copy(out[:], raw)
	return out, nil
}

// MustParseHash is like ParseHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
