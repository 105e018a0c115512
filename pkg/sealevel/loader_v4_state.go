package sealevel

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

const (
	LoaderV4StatusRetracted = iota
	LoaderV4StatusDeployed
	LoaderV4StatusFinalized
)

const LoaderV4ProgramDataOffset = 48

// LoaderV4State is the fixed header in front of a loader v4 program's
// executable bytes.
type LoaderV4State struct {
	Slot                          uint64
	AuthorityAddressOrNextVersion solana.PublicKey
	Status                        uint64
}

func (state *LoaderV4State) Marshal() []byte {
	out := make([]byte, LoaderV4ProgramDataOffset)
	binary.LittleEndian.PutUint64(out[0:8], state.Slot)
	copy(out[8:40], state.AuthorityAddressOrNextVersion[:])
	binary.LittleEndian.PutUint64(out[40:48], state.Status)
	return out
}

func UnmarshalLoaderV4State(data []byte) (*LoaderV4State, bool) {
	if len(data) < LoaderV4ProgramDataOffset {
		return nil, false
	}
	state := &LoaderV4State{
		Slot:   binary.LittleEndian.Uint64(data[0:8]),
		Status: binary.LittleEndian.Uint64(data[40:48]),
	}
	copy(state.AuthorityAddressOrNextVersion[:], data[8:40])
	return state, true
}
