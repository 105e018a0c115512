package sysvar

import (
	"fmt"
	"slices"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarSlotHashesAddrStr = "SysvarS1otHashes111111111111111111111111111"

var SysvarSlotHashesAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarSlotHashesAddrStr))

const SlotHashesMaxEntries = 512

const SysvarSlotHashesStructLen = 8 + SlotHashesMaxEntries*(8+32)

type SlotHash struct {
	Slot uint64
	Hash [32]byte
}

// SlotHashes is ordered newest first.
type SlotHashes []SlotHash

func (SlotHashes) Kind() Kind { return KindSlotHashes }
func (SlotHashes) sysvar()    {}

// Add inserts an entry, keeping slots in descending order and dropping the
// oldest entries beyond SlotHashesMaxEntries.
func (sh *SlotHashes) Add(slot uint64, hash [32]byte) {
	entries := append(slices.Clone(*sh), SlotHash{Slot: slot, Hash: hash})
	slices.SortStableFunc(entries, func(a, b SlotHash) int {
		switch {
		case a.Slot > b.Slot:
			return -1
		case a.Slot < b.Slot:
			return 1
		}
		return 0
	})
	if len(entries) > SlotHashesMaxEntries {
		entries = entries[:SlotHashesMaxEntries]
	}
	*sh = entries
}

func (sh SlotHashes) Get(slot uint64) ([32]byte, bool) {
	for _, entry := range sh {
		if entry.Slot == slot {
			return entry.Hash, true
		}
	}
	return [32]byte{}, false
}

// Newest returns the most recently added entry.
func (sh SlotHashes) Newest() (SlotHash, bool) {
	if len(sh) == 0 {
		return SlotHash{}, false
	}
	return sh[0], true
}

func (sh *SlotHashes) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	entriesLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read length of entries when decoding SysvarSlotHashes: %w", err)
	}
	if entriesLen > SlotHashesMaxEntries {
		return fmt.Errorf("too many entries when decoding SysvarSlotHashes: %d", entriesLen)
	}

	slotHashes := make(SlotHashes, 0, entriesLen)
	for count := uint64(0); count < entriesLen; count++ {
		var entry SlotHash
		entry.Slot, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Slot when decoding SysvarSlotHashes: %w", err)
		}

		hash, err := decoder.ReadNBytes(32)
		if err != nil {
			return fmt.Errorf("failed to read Hash when decoding SysvarSlotHashes: %w", err)
		}
		copy(entry.Hash[:], hash)

		slotHashes = append(slotHashes, entry)
	}

	*sh = slotHashes
	return
}

func (sh SlotHashes) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(uint64(len(sh)), bin.LE)
	if err != nil {
		return err
	}
	for _, entry := range sh {
		_ = encoder.WriteUint64(entry.Slot, bin.LE)
		if err = encoder.WriteBytes(entry.Hash[:], false); err != nil {
			return err
		}
	}
	return nil
}
