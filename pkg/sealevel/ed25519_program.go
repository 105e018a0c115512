package sealevel

import (
	"crypto/ed25519"
	"math"

	bin "github.com/gagliardetto/binary"
	"go.firedancer.io/harness/pkg/safemath"
)

const (
	SignatureOffsetStarts          = 2
	SignatureOffsetsSerializedSize = 14
	SignatureSerializedSize        = 64
	PubkeySerializedSize           = 32
)

type Ed25519SignatureOffsets struct {
	SignatureOffset           uint16
	SignatureInstructionIndex uint16
	PublicKeyOffset           uint16
	PublicKeyInstructionIndex uint16
	MessageDataOffset         uint16
	MessageDataSize           uint16
	MessageInstructionIndex   uint16
}

func (offsets *Ed25519SignatureOffsets) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	fields := []*uint16{
		&offsets.SignatureOffset,
		&offsets.SignatureInstructionIndex,
		&offsets.PublicKeyOffset,
		&offsets.PublicKeyInstructionIndex,
		&offsets.MessageDataOffset,
		&offsets.MessageDataSize,
		&offsets.MessageInstructionIndex,
	}
	for _, field := range fields {
		v, err := decoder.ReadUint16(bin.LE)
		if err != nil {
			return err
		}
		*field = v
	}
	return nil
}

func (offsets *Ed25519SignatureOffsets) MarshalWithEncoder(encoder *bin.Encoder) error {
	for _, v := range []uint16{
		offsets.SignatureOffset,
		offsets.SignatureInstructionIndex,
		offsets.PublicKeyOffset,
		offsets.PublicKeyInstructionIndex,
		offsets.MessageDataOffset,
		offsets.MessageDataSize,
		offsets.MessageInstructionIndex,
	} {
		if err := encoder.WriteUint16(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func ed25519GetDataSlice(data []byte, instructionDatas [][]byte, instructionIndex, offsetStart uint16, size uint64) ([]byte, error) {
	var instruction []byte
	if instructionIndex == math.MaxUint16 {
		instruction = data
	} else {
		signatureIndex := int(instructionIndex)
		if signatureIndex >= len(instructionDatas) {
			return nil, PrecompileErrInvalidDataOffsets
		}
		instruction = instructionDatas[signatureIndex]
	}

	start := uint64(offsetStart)
	end := safemath.SaturatingAddU64(start, size)
	if end > uint64(len(instruction)) {
		return nil, PrecompileErrInvalidDataOffsets
	}
	return instruction[start:end], nil
}

// Ed25519ProgramExecute verifies every signature described by data. Offsets
// may point into sibling instructions of the same transaction.
func Ed25519ProgramExecute(data []byte, instructionDatas [][]byte) error {
	dataLen := uint64(len(data))
	if dataLen < SignatureOffsetStarts {
		return PrecompileErrInvalidInstructionDataSize
	}

	numSignatures := data[0]
	if numSignatures == 0 && dataLen > SignatureOffsetStarts {
		return PrecompileErrInvalidInstructionDataSize
	}

	expectedDataSize := (uint64(numSignatures) * SignatureOffsetsSerializedSize) + SignatureOffsetStarts
	if dataLen < expectedDataSize {
		return PrecompileErrInvalidInstructionDataSize
	}

	for count := uint64(0); count < uint64(numSignatures); count++ {
		start := (count * SignatureOffsetsSerializedSize) + SignatureOffsetStarts
		end := start + SignatureOffsetsSerializedSize

		var offsets Ed25519SignatureOffsets
		err := offsets.UnmarshalWithDecoder(bin.NewBinDecoder(data[start:end]))
		if err != nil {
			return PrecompileErrInvalidDataOffsets
		}

		signature, err := ed25519GetDataSlice(data, instructionDatas, offsets.SignatureInstructionIndex, offsets.SignatureOffset, SignatureSerializedSize)
		if err != nil {
			return err
		}

		pubkey, err := ed25519GetDataSlice(data, instructionDatas, offsets.PublicKeyInstructionIndex, offsets.PublicKeyOffset, PubkeySerializedSize)
		if err != nil {
			return err
		}

		msg, err := ed25519GetDataSlice(data, instructionDatas, offsets.MessageInstructionIndex, offsets.MessageDataOffset, uint64(offsets.MessageDataSize))
		if err != nil {
			return err
		}

		if !ed25519.Verify(pubkey, msg, signature) {
			return PrecompileErrInvalidSignature
		}
	}

	return nil
}
