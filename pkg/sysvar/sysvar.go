// Package sysvar holds the chain state exposed to programs as sysvar accounts,
// together with the codecs for their account representation.
package sysvar

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarOwnerAddrStr = "Sysvar1111111111111111111111111111111111111"

var SysvarOwnerAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarOwnerAddrStr))

// Kind enumerates the sysvars the snapshot carries. The set is closed.
type Kind int

const (
	KindClock Kind = iota
	KindRent
	KindEpochSchedule
	KindEpochRewards
	KindSlotHashes
	KindStakeHistory
	KindLastRestartSlot
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindClock,
	KindRent,
	KindEpochSchedule,
	KindEpochRewards,
	KindSlotHashes,
	KindStakeHistory,
	KindLastRestartSlot,
}

type kindInfo struct {
	name    string
	addr    solana.PublicKey
	minSize int
}

var kindInfos = map[Kind]kindInfo{
	KindClock:           {"Clock", SysvarClockAddr, SysvarClockStructLen},
	KindRent:            {"Rent", SysvarRentAddr, SysvarRentStructLen},
	KindEpochSchedule:   {"EpochSchedule", SysvarEpochScheduleAddr, SysvarEpochScheduleStructLen},
	KindEpochRewards:    {"EpochRewards", SysvarEpochRewardsAddr, SysvarEpochRewardsStructLen},
	KindSlotHashes:      {"SlotHashes", SysvarSlotHashesAddr, SysvarSlotHashesStructLen},
	KindStakeHistory:    {"StakeHistory", SysvarStakeHistoryAddr, SysvarStakeHistoryStructLen},
	KindLastRestartSlot: {"LastRestartSlot", SysvarLastRestartSlotAddr, SysvarLastRestartSlotStructLen},
}

func mustInfo(kind Kind) kindInfo {
	info, ok := kindInfos[kind]
	if !ok {
		panic(fmt.Sprintf("unsupported sysvar kind %d", int(kind)))
	}
	return info
}

func (k Kind) String() string {
	if info, ok := kindInfos[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Address returns the well-known account address of the sysvar. Panics on an
// unsupported kind.
func (k Kind) Address() solana.PublicKey {
	return mustInfo(k).addr
}

// KindForAddress maps a sysvar account address back to its kind.
func KindForAddress(addr solana.PublicKey) (Kind, bool) {
	for _, kind := range Kinds {
		if kindInfos[kind].addr == addr {
			return kind, true
		}
	}
	return 0, false
}

func IsSysvarAddress(addr solana.PublicKey) bool {
	_, ok := KindForAddress(addr)
	return ok
}

// Value is implemented by every sysvar type. The unexported method keeps the
// set of implementations closed to this package.
type Value interface {
	Kind() Kind
	MarshalWithEncoder(encoder *bin.Encoder) error
	sysvar()
}

type decodable interface {
	Value
	UnmarshalWithDecoder(decoder *bin.Decoder) error
}

// Marshal serializes a sysvar into its account data layout, padded to the
// sysvar's fixed account size.
func Marshal(v Value) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to serialize %s sysvar: %w", v.Kind(), err)
	}
	data := buf.Bytes()
	if size := mustInfo(v.Kind()).minSize; len(data) < size {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data, nil
}

// Unmarshal decodes account data for the given kind.
func Unmarshal(kind Kind, data []byte) (Value, error) {
	var v decodable
	switch kind {
	case KindClock:
		v = new(Clock)
	case KindRent:
		v = new(Rent)
	case KindEpochSchedule:
		v = new(EpochSchedule)
	case KindEpochRewards:
		v = new(EpochRewards)
	case KindSlotHashes:
		v = new(SlotHashes)
	case KindStakeHistory:
		v = new(StakeHistory)
	case KindLastRestartSlot:
		v = new(LastRestartSlot)
	default:
		panic(fmt.Sprintf("unsupported sysvar kind %d", int(kind)))
	}
	if err := v.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return deref(v), nil
}

// deref turns the pointer used while decoding back into the value type the
// snapshot stores.
func deref(v Value) Value {
	switch t := v.(type) {
	case *Clock:
		return *t
	case *Rent:
		return *t
	case *EpochSchedule:
		return *t
	case *EpochRewards:
		return *t
	case *SlotHashes:
		return *t
	case *StakeHistory:
		return *t
	case *LastRestartSlot:
		return *t
	}
	return v
}
