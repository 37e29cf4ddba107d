// Package chain holds the primitive value types shared by the ledger and the
// token registry: holder addresses and 32-byte Keccak-256 hashes.
package chain

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashLength is the size of a Keccak-256 digest in bytes.
const HashLength = 32

var ErrInvalidHash = errors.New("invalid hash, expected 0x-prefixed 64 hex characters")

// Hash is an opaque 32-byte value, used for unlock commitments.
type Hash [HashLength]byte

// Keccak256 returns the legacy Keccak-256 digest of data, as used by Ethereum.
func Keccak256(data ...[]byte) Hash {
	var h Hash

	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])

	return h
}

// DoubleKeccak hashes secret twice. Commitments are stored in this form and
// unlock callers present the same value, never the raw secret.
func DoubleKeccak(secret []byte) Hash {
	inner := Keccak256(secret)
	return Keccak256(inner[:])
}

// ParseHash parses a 0x-prefixed hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return h, ErrInvalidHash
	}
	s = s[2:]

	if len(s) != HashLength*2 {
		return h, ErrInvalidHash
	}

	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, ErrInvalidHash
	}

	return h, nil
}

// IsZero reports whether every byte of h is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Equal compares two hashes in constant time.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
