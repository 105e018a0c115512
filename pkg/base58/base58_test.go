package base58

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase58_RoundTrip(t *testing.T) {
	addr := MustDecodeFromString("SysvarC1ock11111111111111111111111111111111")
	assert.Equal(t, "SysvarC1ock11111111111111111111111111111111", Encode(addr[:]))

	zero := MustDecodeFromString("11111111111111111111111111111111")
	assert.Equal(t, [32]byte{}, zero)
}

func TestBase58_Invalid(t *testing.T) {
	_, err := DecodeFromString("0OIl")
	assert.Error(t, err)

	_, err = DecodeFromString("abc")
	assert.Error(t, err)

	assert.Panics(t, func() { MustDecodeFromString("abc") })
}
