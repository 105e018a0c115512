package sysvar

import (
	"fmt"
	"slices"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const SysvarStakeHistoryAddrStr = "SysvarStakeHistory1111111111111111111111111"

var SysvarStakeHistoryAddr = solana.PublicKey(base58.MustDecodeFromString(SysvarStakeHistoryAddrStr))

const StakeHistoryMaxEntries = 512

const SysvarStakeHistoryStructLen = 8 + StakeHistoryMaxEntries*(8+24)

type StakeHistoryEntry struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

type StakeHistoryPair struct {
	Epoch uint64
	Entry StakeHistoryEntry
}

// StakeHistory is ordered newest epoch first.
type StakeHistory []StakeHistoryPair

func (StakeHistory) Kind() Kind { return KindStakeHistory }
func (StakeHistory) sysvar()    {}

func (sh StakeHistory) Get(epoch uint64) (StakeHistoryEntry, bool) {
	for _, pair := range sh {
		if pair.Epoch == epoch {
			return pair.Entry, true
		}
	}
	return StakeHistoryEntry{}, false
}

// Add records the entry for epoch, replacing an existing one.
func (sh *StakeHistory) Add(epoch uint64, entry StakeHistoryEntry) {
	pairs := slices.Clone(*sh)
	idx, found := slices.BinarySearchFunc(pairs, epoch, func(p StakeHistoryPair, e uint64) int {
		switch {
		case p.Epoch > e:
			return -1
		case p.Epoch < e:
			return 1
		}
		return 0
	})
	if found {
		pairs[idx].Entry = entry
	} else {
		pairs = slices.Insert(pairs, idx, StakeHistoryPair{Epoch: epoch, Entry: entry})
	}
	if len(pairs) > StakeHistoryMaxEntries {
		pairs = pairs[:StakeHistoryMaxEntries]
	}
	*sh = pairs
}

func (sh *StakeHistory) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	entriesLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read length of entries when decoding SysvarStakeHistory: %w", err)
	}
	if entriesLen > StakeHistoryMaxEntries {
		return fmt.Errorf("too many entries when decoding SysvarStakeHistory: %d", entriesLen)
	}

	stakeHistory := make(StakeHistory, 0, entriesLen)
	for count := uint64(0); count < entriesLen; count++ {
		var pair StakeHistoryPair
		pair.Epoch, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Epoch when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Effective, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Effective when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Activating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Activating when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Deactivating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Deactivating when decoding SysvarStakeHistory: %w", err)
		}

		stakeHistory = append(stakeHistory, pair)
	}

	*sh = stakeHistory
	return
}

func (sh StakeHistory) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(uint64(len(sh)), bin.LE)
	if err != nil {
		return err
	}
	for _, pair := range sh {
		_ = encoder.WriteUint64(pair.Epoch, bin.LE)
		_ = encoder.WriteUint64(pair.Entry.Effective, bin.LE)
		_ = encoder.WriteUint64(pair.Entry.Activating, bin.LE)
		if err = encoder.WriteUint64(pair.Entry.Deactivating, bin.LE); err != nil {
			return err
		}
	}
	return nil
}
