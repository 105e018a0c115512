// Package base58 decodes the fixed-size base58 addresses used throughout the runtime.
package base58

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// DecodeFromString decodes a base58 string into a 32-byte address.
func DecodeFromString(str string) ([32]byte, error) {
	var out [32]byte
	b, err := base58.Decode(str)
	if err != nil {
		return out, fmt.Errorf("invalid base58 %q: %w", str, err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("invalid address length for %q: %d", str, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// MustDecodeFromString is like DecodeFromString but panics on error.
// Intended for package-level address constants.
func MustDecodeFromString(str string) [32]byte {
	out, err := DecodeFromString(str)
	if err != nil {
		panic(err)
	}
	return out
}

func Encode(b []byte) string {
	return base58.Encode(b)
}
