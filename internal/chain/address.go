package chain

import (
	"encoding/hex"
	"errors"
	"strings"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = 20

var ErrInvalidAddress = errors.New("invalid address, expected 0x-prefixed 40 hex characters")

// Address identifies a token holder or caller.
type Address [AddressLength]byte

// ZeroAddress is the null origin used for mint transfers.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address. Case is ignored.
func ParseAddress(s string) (Address, error) {
	var a Address

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return a, ErrInvalidAddress
	}
	s = s[2:]

	if len(s) != AddressLength*2 {
		return a, ErrInvalidAddress
	}

	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return Address{}, ErrInvalidAddress
	}

	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the lowercase 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
