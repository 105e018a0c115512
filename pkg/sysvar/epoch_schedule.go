package sysvar

import (
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarEpochScheduleAddrStr = "SysvarEpochSchedu1e111111111111111111111111"

var SysvarEpochScheduleAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarEpochScheduleAddrStr))

const SysvarEpochScheduleStructLen = 33

const (
	DefaultSlotsPerEpoch  = 432000
	MinimumSlotsPerEpoch  = 32
	minimumSlotsTrailing0 = 5
)

type EpochSchedule struct {
	SlotsPerEpoch            uint64 `yaml:"slots_per_epoch"`
	LeaderScheduleSlotOffset uint64 `yaml:"leader_schedule_slot_offset"`
	Warmup                   bool   `yaml:"warmup"`
	FirstNormalEpoch         uint64 `yaml:"first_normal_epoch"`
	FirstNormalSlot          uint64 `yaml:"first_normal_slot"`
}

// NewEpochSchedule derives the first normal epoch and slot the same way the
// cluster does for a schedule with the given length and warmup.
func NewEpochSchedule(slotsPerEpoch, leaderScheduleSlotOffset uint64, warmup bool) EpochSchedule {
	es := EpochSchedule{
		SlotsPerEpoch:            slotsPerEpoch,
		LeaderScheduleSlotOffset: leaderScheduleSlotOffset,
		Warmup:                   warmup,
	}
	if warmup {
		pow := nextPowerOfTwo(slotsPerEpoch)
		es.FirstNormalEpoch = uint64(bits.TrailingZeros64(pow)) - minimumSlotsTrailing0
		es.FirstNormalSlot = pow - MinimumSlotsPerEpoch
	}
	return es
}

func EpochScheduleWithoutWarmup() EpochSchedule {
	return NewEpochSchedule(DefaultSlotsPerEpoch, DefaultSlotsPerEpoch, false)
}

func (EpochSchedule) Kind() Kind { return KindEpochSchedule }
func (EpochSchedule) sysvar()    {}

func (ses *EpochSchedule) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	ses.SlotsPerEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SlotsPerEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.LeaderScheduleSlotOffset, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleSlotOffset when decoding SysvarEpochSchedule: %w", err)
	}

	ses.Warmup, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Warmup when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalSlot when decoding SysvarEpochSchedule: %w", err)
	}
	return
}

func (ses EpochSchedule) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(ses.SlotsPerEpoch, bin.LE)
	_ = encoder.WriteUint64(ses.LeaderScheduleSlotOffset, bin.LE)
	_ = encoder.WriteBool(ses.Warmup)
	_ = encoder.WriteUint64(ses.FirstNormalEpoch, bin.LE)
	return encoder.WriteUint64(ses.FirstNormalSlot, bin.LE)
}

// GetEpochAndSlotIndex returns the epoch containing slot and the slot's offset within it.
func (ses EpochSchedule) GetEpochAndSlotIndex(slot uint64) (uint64, uint64) {
	if slot < ses.FirstNormalSlot {
		epoch := uint64(bits.TrailingZeros64(nextPowerOfTwo(slot+MinimumSlotsPerEpoch+1))) - minimumSlotsTrailing0 - 1
		epochLen := uint64(1) << (epoch + minimumSlotsTrailing0)
		return epoch, slot - (epochLen - MinimumSlotsPerEpoch)
	}

	normalSlotIndex := slot - ses.FirstNormalSlot
	normalEpochIndex := normalSlotIndex / ses.SlotsPerEpoch
	return ses.FirstNormalEpoch + normalEpochIndex, normalSlotIndex % ses.SlotsPerEpoch
}

func (ses EpochSchedule) GetEpoch(slot uint64) uint64 {
	epoch, _ := ses.GetEpochAndSlotIndex(slot)
	return epoch
}

func (ses EpochSchedule) SlotsInEpoch(epoch uint64) uint64 {
	if epoch < ses.FirstNormalEpoch {
		return uint64(1) << (epoch + minimumSlotsTrailing0)
	}
	return ses.SlotsPerEpoch
}

func nextPowerOfTwo(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return uint64(1) << (64 - bits.LeadingZeros64(v-1))
}
