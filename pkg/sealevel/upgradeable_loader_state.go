package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	UpgradeableLoaderStateTypeUninitialized = iota
	UpgradeableLoaderStateTypeBuffer
	UpgradeableLoaderStateTypeProgram
	UpgradeableLoaderStateTypeProgramData
)

const (
	upgradeableLoaderSizeOfProgram             = 36
	upgradeableLoaderSizeOfProgramDataMetaData = 45
)

type UpgradeableLoaderStateBuffer struct {
	AuthorityAddress *solana.PublicKey
}

type UpgradeableLoaderStateProgram struct {
	ProgramDataAddress solana.PublicKey
}

type UpgradeableLoaderStateProgramData struct {
	Slot                    uint64
	UpgradeAuthorityAddress *solana.PublicKey
}

type UpgradeableLoaderState struct {
	Type        uint32
	Buffer      UpgradeableLoaderStateBuffer
	Program     UpgradeableLoaderStateProgram
	ProgramData UpgradeableLoaderStateProgramData
}

func readOptionalPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	present, err := decoder.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	return solana.PublicKeyFromBytes(pkBytes).ToPointer(), nil
}

func writeOptionalPubkey(encoder *bin.Encoder, pk *solana.PublicKey) error {
	if pk == nil {
		return encoder.WriteBool(false)
	}
	err := encoder.WriteBool(true)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(pk[:], false)
}

func (state *UpgradeableLoaderState) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	state.Type, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	switch state.Type {
	case UpgradeableLoaderStateTypeUninitialized:
	case UpgradeableLoaderStateTypeBuffer:
		state.Buffer.AuthorityAddress, err = readOptionalPubkey(decoder)
	case UpgradeableLoaderStateTypeProgram:
		var pk []byte
		pk, err = decoder.ReadBytes(solana.PublicKeyLength)
		if err == nil {
			state.Program.ProgramDataAddress = solana.PublicKeyFromBytes(pk)
		}
	case UpgradeableLoaderStateTypeProgramData:
		state.ProgramData.Slot, err = decoder.ReadUint64(bin.LE)
		if err == nil {
			state.ProgramData.UpgradeAuthorityAddress, err = readOptionalPubkey(decoder)
		}
	default:
		err = fmt.Errorf("invalid upgradeable loader state type %d", state.Type)
	}
	return err
}

func (state *UpgradeableLoaderState) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(state.Type, bin.LE)
	if err != nil {
		return err
	}

	switch state.Type {
	case UpgradeableLoaderStateTypeUninitialized:
		return nil
	case UpgradeableLoaderStateTypeBuffer:
		return writeOptionalPubkey(encoder, state.Buffer.AuthorityAddress)
	case UpgradeableLoaderStateTypeProgram:
		return encoder.WriteBytes(state.Program.ProgramDataAddress[:], false)
	case UpgradeableLoaderStateTypeProgramData:
		err = encoder.WriteUint64(state.ProgramData.Slot, bin.LE)
		if err != nil {
			return err
		}
		return writeOptionalPubkey(encoder, state.ProgramData.UpgradeAuthorityAddress)
	}
	return fmt.Errorf("invalid upgradeable loader state type %d", state.Type)
}

func unmarshalUpgradeableLoaderState(data []byte) (*UpgradeableLoaderState, error) {
	state := new(UpgradeableLoaderState)
	decoder := bin.NewBinDecoder(data)
	err := state.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, err
	}
	return state, nil
}

func marshalUpgradeableLoaderState(state *UpgradeableLoaderState) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	err := state.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProgramDataAddress derives the programdata account address that the
// upgradeable loader pairs with programId.
func ProgramDataAddress(programId solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{programId[:]}, BpfLoaderUpgradeableAddr)
	if err != nil {
		panic(fmt.Sprintf("deriving programdata address for %s: %s", programId, err))
	}
	return addr
}

// ProgramDataAddressOf decodes an upgradeable loader program account and
// returns the programdata address it points to.
func ProgramDataAddressOf(programAcctData []byte) (solana.PublicKey, bool) {
	state, err := unmarshalUpgradeableLoaderState(programAcctData)
	if err != nil || state.Type != UpgradeableLoaderStateTypeProgram {
		return solana.PublicKey{}, false
	}
	return state.Program.ProgramDataAddress, true
}

// ElfFromProgramData strips the programdata metadata header and returns the
// program's executable bytes.
func ElfFromProgramData(programData []byte) ([]byte, bool) {
	state, err := unmarshalUpgradeableLoaderState(programData)
	if err != nil || state.Type != UpgradeableLoaderStateTypeProgramData {
		return nil, false
	}
	if len(programData) < upgradeableLoaderSizeOfProgramDataMetaData {
		return nil, false
	}
	return programData[upgradeableLoaderSizeOfProgramDataMetaData:], true
}

func newUpgradeableProgramAccountData(programDataAddr solana.PublicKey) []byte {
	data, err := marshalUpgradeableLoaderState(&UpgradeableLoaderState{
		Type:    UpgradeableLoaderStateTypeProgram,
		Program: UpgradeableLoaderStateProgram{ProgramDataAddress: programDataAddr},
	})
	if err != nil {
		panic(err)
	}
	return data
}

func newUpgradeableProgramDataAccountData(slot uint64, authority *solana.PublicKey, elf []byte) []byte {
	header, err := marshalUpgradeableLoaderState(&UpgradeableLoaderState{
		Type:        UpgradeableLoaderStateTypeProgramData,
		ProgramData: UpgradeableLoaderStateProgramData{Slot: slot, UpgradeAuthorityAddress: authority},
	})
	if err != nil {
		panic(err)
	}
	data := make([]byte, upgradeableLoaderSizeOfProgramDataMetaData, upgradeableLoaderSizeOfProgramDataMetaData+len(elf))
	copy(data, header)
	return append(data, elf...)
}
