package sysvar

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarLastRestartSlotAddrStr = "SysvarLastRestartS1ot1111111111111111111111"

var SysvarLastRestartSlotAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarLastRestartSlotAddrStr))

const SysvarLastRestartSlotStructLen = 8

type LastRestartSlot struct {
	LastRestartSlot uint64
}

func (LastRestartSlot) Kind() Kind { return KindLastRestartSlot }
func (LastRestartSlot) sysvar()    {}

func (lrs *LastRestartSlot) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lrs.LastRestartSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LastRestartSlot when decoding SysvarLastRestartSlot: %w", err)
	}
	return
}

func (lrs LastRestartSlot) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(lrs.LastRestartSlot, bin.LE)
}
