package sysvar

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"k8s.io/klog/v2"
)

// ExpiredBlockhashMarker tags hashes produced by ExpireBlockhash.
const ExpiredBlockhashMarker = 0xFF

// Sysvars is the snapshot of chain state handed to the execution engine. All
// methods are safe for concurrent use.
type Sysvars struct {
	mu sync.RWMutex

	clock           Clock
	rent            Rent
	epochSchedule   EpochSchedule
	epochRewards    EpochRewards
	slotHashes      SlotHashes
	stakeHistory    StakeHistory
	lastRestartSlot LastRestartSlot

	// Now supplies the wall clock used by ExpireBlockhash.
	Now func() time.Time
}

// NewSysvars returns the canonical baseline snapshot.
func NewSysvars() *Sysvars {
	clock := Clock{}

	slotHashes := make(SlotHashes, SlotHashesMaxEntries)
	slotHashes[0] = SlotHash{Slot: clock.Slot}

	var stakeHistory StakeHistory
	stakeHistory.Add(clock.Epoch, StakeHistoryEntry{})

	return &Sysvars{
		clock:           clock,
		rent:            DefaultRent(),
		epochSchedule:   EpochScheduleWithoutWarmup(),
		epochRewards:    EpochRewards{},
		slotHashes:      slotHashes,
		stakeHistory:    stakeHistory,
		lastRestartSlot: LastRestartSlot{},
		Now:             time.Now,
	}
}

// Snapshot returns an independent copy, so an execution sees one consistent view.
func (s *Sysvars) Snapshot() *Sysvars {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Sysvars{
		clock:           s.clock,
		rent:            s.rent,
		epochSchedule:   s.epochSchedule,
		epochRewards:    s.epochRewards,
		slotHashes:      slices.Clone(s.slotHashes),
		stakeHistory:    slices.Clone(s.stakeHistory),
		lastRestartSlot: s.lastRestartSlot,
		Now:             s.Now,
	}
}

func (s *Sysvars) Clock() Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

func (s *Sysvars) SetClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Sysvars) Rent() Rent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rent
}

func (s *Sysvars) SetRent(rent Rent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rent = rent
}

func (s *Sysvars) EpochSchedule() EpochSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epochSchedule
}

func (s *Sysvars) SetEpochSchedule(epochSchedule EpochSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochSchedule = epochSchedule
}

func (s *Sysvars) EpochRewards() EpochRewards {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epochRewards
}

func (s *Sysvars) SetEpochRewards(epochRewards EpochRewards) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochRewards = epochRewards
}

func (s *Sysvars) SlotHashes() SlotHashes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.slotHashes)
}

func (s *Sysvars) SetSlotHashes(slotHashes SlotHashes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotHashes = slices.Clone(slotHashes)
}

func (s *Sysvars) StakeHistory() StakeHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stakeHistory)
}

func (s *Sysvars) SetStakeHistory(stakeHistory StakeHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakeHistory = slices.Clone(stakeHistory)
}

func (s *Sysvars) LastRestartSlot() LastRestartSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRestartSlot
}

func (s *Sysvars) SetLastRestartSlot(lastRestartSlot LastRestartSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRestartSlot = lastRestartSlot
}

// Get returns the current value of the given kind. Panics on an unsupported kind.
func (s *Sysvars) Get(kind Kind) Value {
	switch kind {
	case KindClock:
		return s.Clock()
	case KindRent:
		return s.Rent()
	case KindEpochSchedule:
		return s.EpochSchedule()
	case KindEpochRewards:
		return s.EpochRewards()
	case KindSlotHashes:
		return s.SlotHashes()
	case KindStakeHistory:
		return s.StakeHistory()
	case KindLastRestartSlot:
		return s.LastRestartSlot()
	}
	panic(fmt.Sprintf("unsupported sysvar kind %d", int(kind)))
}

// Set replaces the sysvar matching the value's kind.
func (s *Sysvars) Set(value Value) {
	switch v := value.(type) {
	case Clock:
		s.SetClock(v)
	case *Clock:
		s.SetClock(*v)
	case Rent:
		s.SetRent(v)
	case *Rent:
		s.SetRent(*v)
	case EpochSchedule:
		s.SetEpochSchedule(v)
	case *EpochSchedule:
		s.SetEpochSchedule(*v)
	case EpochRewards:
		s.SetEpochRewards(v)
	case *EpochRewards:
		s.SetEpochRewards(*v)
	case SlotHashes:
		s.SetSlotHashes(v)
	case *SlotHashes:
		s.SetSlotHashes(*v)
	case StakeHistory:
		s.SetStakeHistory(v)
	case *StakeHistory:
		s.SetStakeHistory(*v)
	case LastRestartSlot:
		s.SetLastRestartSlot(v)
	case *LastRestartSlot:
		s.SetLastRestartSlot(*v)
	default:
		panic(fmt.Sprintf("unsupported sysvar value %T", value))
	}
}

// Account renders the sysvar as the account a program would read.
func (s *Sysvars) Account(kind Kind) accounts.Account {
	data, err := Marshal(s.Get(kind))
	if err != nil {
		panic(err)
	}
	return accounts.Account{
		Lamports: 1,
		Data:     data,
		Owner:    SysvarOwnerAddr,
	}
}

// KeyedAccounts returns every sysvar account in Kinds order.
func (s *Sysvars) KeyedAccounts() []accounts.KeyedAccount {
	accts := make([]accounts.KeyedAccount, 0, len(Kinds))
	for _, kind := range Kinds {
		accts = append(accts, accounts.KeyedAccount{Key: kind.Address(), Account: s.Account(kind)})
	}
	return accts
}

// Absorb decodes data into the snapshot when addr is a sysvar address. It
// reports whether addr named a sysvar.
func (s *Sysvars) Absorb(addr solana.PublicKey, data []byte) (bool, error) {
	kind, ok := KindForAddress(addr)
	if !ok {
		return false, nil
	}
	value, err := Unmarshal(kind, data)
	if err != nil {
		return true, fmt.Errorf("failed to absorb %s sysvar write: %w", kind, err)
	}
	s.Set(value)
	klog.V(2).Infof("absorbed %s sysvar write", kind)
	return true, nil
}

// WarpToSlot moves the clock to slot. Epoch-derived fields are left alone.
func (s *Sysvars) WarpToSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Slot = slot
}

// ExpireBlockhash rotates the most recent blockhash by advancing one slot and
// recording a new slot hash for it.
func (s *Sysvars) ExpireBlockhash() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.clock.Slot
	var hash [32]byte
	binary.LittleEndian.PutUint64(hash[0:8], slot)
	binary.LittleEndian.PutUint64(hash[8:16], uint64(s.Now().Unix()))
	hash[16] = ExpiredBlockhashMarker

	s.slotHashes.Add(slot+1, hash)
	s.clock.Slot = slot + 1
}
