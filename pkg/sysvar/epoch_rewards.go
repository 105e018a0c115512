package sysvar

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarEpochRewardsAddrStr = "SysvarEpochRewards1111111111111111111111111"

var SysvarEpochRewardsAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarEpochRewardsAddrStr))

const SysvarEpochRewardsStructLen = 81

type EpochRewards struct {
	DistributionStartingBlockHeight uint64
	NumPartitions                   uint64
	ParentBlockhash                 [32]byte
	TotalPoints                     bin.Uint128
	TotalRewards                    uint64
	DistributedRewards              uint64
	Active                          bool
}

func (EpochRewards) Kind() Kind { return KindEpochRewards }
func (EpochRewards) sysvar()    {}

func (ser *EpochRewards) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	ser.DistributionStartingBlockHeight, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DistributionStartingBlockHeight when decoding SysvarEpochRewards: %w", err)
	}

	ser.NumPartitions, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read NumPartitions when decoding SysvarEpochRewards: %w", err)
	}

	parentBlockhash, err := decoder.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("failed to read ParentBlockhash when decoding SysvarEpochRewards: %w", err)
	}
	copy(ser.ParentBlockhash[:], parentBlockhash)

	ser.TotalPoints.Lo, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TotalPoints when decoding SysvarEpochRewards: %w", err)
	}
	ser.TotalPoints.Hi, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TotalPoints when decoding SysvarEpochRewards: %w", err)
	}

	ser.TotalRewards, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TotalRewards when decoding SysvarEpochRewards: %w", err)
	}

	ser.DistributedRewards, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DistributedRewards when decoding SysvarEpochRewards: %w", err)
	}

	ser.Active, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Active when decoding SysvarEpochRewards: %w", err)
	}
	return
}

func (ser EpochRewards) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(ser.DistributionStartingBlockHeight, bin.LE)
	_ = encoder.WriteUint64(ser.NumPartitions, bin.LE)
	_ = encoder.WriteBytes(ser.ParentBlockhash[:], false)
	_ = encoder.WriteUint64(ser.TotalPoints.Lo, bin.LE)
	_ = encoder.WriteUint64(ser.TotalPoints.Hi, bin.LE)
	_ = encoder.WriteUint64(ser.TotalRewards, bin.LE)
	_ = encoder.WriteUint64(ser.DistributedRewards, bin.LE)
	return encoder.WriteBool(ser.Active)
}
