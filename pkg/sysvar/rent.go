package sysvar

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarRentAddrStr))

const SysvarRentStructLen = 17

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50

	// AccountStorageOverhead is the per-account byte overhead charged on top
	// of the data length.
	AccountStorageOverhead = 128
)

type Rent struct {
	LamportsPerUint8Year uint64  `yaml:"lamports_per_byte_year"`
	ExemptionThreshold   float64 `yaml:"exemption_threshold"`
	BurnPercent          byte    `yaml:"burn_percent"`
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerUint8Year: DefaultLamportsPerByteYear,
		ExemptionThreshold:   DefaultExemptionThreshold,
		BurnPercent:          DefaultBurnPercent,
	}
}

func (Rent) Kind() Kind { return KindRent }
func (Rent) sysvar()    {}

func (sr *Rent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sr.LamportsPerUint8Year, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}

	sr.ExemptionThreshold, err = decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}

	sr.BurnPercent, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	return
}

func (sr Rent) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	_ = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	return encoder.WriteByte(sr.BurnPercent)
}

// MinimumBalance is the lamport balance an account holding dataLen bytes
// needs to be rent exempt.
func (sr Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := dataLen + AccountStorageOverhead
	return uint64(float64(bytes*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr Rent) IsExempt(balance uint64, dataLen uint64) bool {
	return balance >= sr.MinimumBalance(dataLen)
}
