package sealevel

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

type Instruction struct {
	ProgramId solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// InstructionAccount is one account reference of an instruction, resolved
// against the transaction's account list.
type InstructionAccount struct {
	IndexInTransaction uint64
	IndexInCaller      uint64
	IndexInCallee      uint64
	IsSigner           bool
	IsWritable         bool
}

// NewInstruction converts any solana-go instruction builder output (for
// example system.NewTransferInstruction(...).Build()) into an Instruction.
func NewInstruction(ix solana.Instruction) (Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("encoding instruction data: %w", err)
	}
	metas := ix.Accounts()
	accts := make([]AccountMeta, 0, len(metas))
	for _, m := range metas {
		accts = append(accts, AccountMeta{Pubkey: m.PublicKey, IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}
	return Instruction{ProgramId: ix.ProgramID(), Accounts: accts, Data: data}, nil
}

// MustNewInstruction is NewInstruction for builders known to encode cleanly.
func MustNewInstruction(ix solana.Instruction) Instruction {
	instr, err := NewInstruction(ix)
	if err != nil {
		panic(err)
	}
	return instr
}

// Keys returns the program id followed by every account address, in order and
// with repeats.
func (ix *Instruction) Keys() []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(ix.Accounts)+1)
	keys = append(keys, ix.ProgramId)
	for _, m := range ix.Accounts {
		keys = append(keys, m.Pubkey)
	}
	return keys
}
