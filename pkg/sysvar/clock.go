package sysvar

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarClockAddrStr = "SysvarC1ock11111111111111111111111111111111"

var SysvarClockAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarClockAddrStr))

const SysvarClockStructLen = 40

type Clock struct {
	Slot                uint64 `yaml:"slot"`
	EpochStartTimestamp int64  `yaml:"epoch_start_timestamp"`
	Epoch               uint64 `yaml:"epoch"`
	LeaderScheduleEpoch uint64 `yaml:"leader_schedule_epoch"`
	UnixTimestamp       int64  `yaml:"unix_timestamp"`
}

func (Clock) Kind() Kind { return KindClock }
func (Clock) sysvar()    {}

func (sc *Clock) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sc.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Slot when decoding SysvarClock: %w", err)
	}

	sc.EpochStartTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read EpochStartTimestamp when decoding SysvarClock: %w", err)
	}

	sc.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Epoch when decoding SysvarClock: %w", err)
	}

	sc.LeaderScheduleEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleEpoch when decoding SysvarClock: %w", err)
	}

	sc.UnixTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read UnixTimestamp when decoding SysvarClock: %w", err)
	}
	return
}

func (sc Clock) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sc.Slot, bin.LE)
	_ = encoder.WriteInt64(sc.EpochStartTimestamp, bin.LE)
	_ = encoder.WriteUint64(sc.Epoch, bin.LE)
	_ = encoder.WriteUint64(sc.LeaderScheduleEpoch, bin.LE)
	return encoder.WriteInt64(sc.UnixTimestamp, bin.LE)
}
