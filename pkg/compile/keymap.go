package compile

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/sealevel"
)

type keyMeta struct {
	index      int
	isSigner   bool
	isWritable bool
}

// KeyMap is the ordered, deduplicated set of addresses referenced by one or
// more instructions. An address keeps the slot of its first occurrence and
// its privileges are the union of every occurrence.
type KeyMap struct {
	keys  []solana.PublicKey
	metas map[solana.PublicKey]*keyMeta
}

func NewKeyMap() *KeyMap {
	return &KeyMap{metas: make(map[solana.PublicKey]*keyMeta)}
}

// KeyMapFromInstructions folds every instruction's accounts, followed by its
// program id, into one KeyMap.
func KeyMapFromInstructions(ixs ...sealevel.Instruction) *KeyMap {
	km := NewKeyMap()
	for _, ix := range ixs {
		km.AddInstruction(ix)
	}
	return km
}

func (km *KeyMap) Add(pubkey solana.PublicKey, isSigner, isWritable bool) int {
	meta, ok := km.metas[pubkey]
	if !ok {
		meta = &keyMeta{index: len(km.keys)}
		km.metas[pubkey] = meta
		km.keys = append(km.keys, pubkey)
	}
	meta.isSigner = meta.isSigner || isSigner
	meta.isWritable = meta.isWritable || isWritable
	return meta.index
}

func (km *KeyMap) AddInstruction(ix sealevel.Instruction) {
	for _, acct := range ix.Accounts {
		km.Add(acct.Pubkey, acct.IsSigner, acct.IsWritable)
	}
	km.Add(ix.ProgramId, false, false)
}

func (km *KeyMap) Len() int {
	return len(km.keys)
}

func (km *KeyMap) Keys() []solana.PublicKey {
	return append([]solana.PublicKey(nil), km.keys...)
}

func (km *KeyMap) Position(pubkey solana.PublicKey) (int, bool) {
	meta, ok := km.metas[pubkey]
	if !ok {
		return 0, false
	}
	return meta.index, true
}

func (km *KeyMap) IsSigner(pubkey solana.PublicKey) bool {
	meta, ok := km.metas[pubkey]
	return ok && meta.isSigner
}

func (km *KeyMap) IsWritable(pubkey solana.PublicKey) bool {
	meta, ok := km.metas[pubkey]
	return ok && meta.isWritable
}

// InstructionAccounts resolves ix's account metas against the map. Each meta
// keeps its position; duplicates point back at their first occurrence.
func (km *KeyMap) InstructionAccounts(ix sealevel.Instruction) []sealevel.InstructionAccount {
	out := make([]sealevel.InstructionAccount, 0, len(ix.Accounts))
	for i, acct := range ix.Accounts {
		index, ok := km.Position(acct.Pubkey)
		if !ok {
			panic("instruction account missing from key map: " + acct.Pubkey.String())
		}

		indexInCallee := uint64(i)
		for j := 0; j < i; j++ {
			if ix.Accounts[j].Pubkey == acct.Pubkey {
				indexInCallee = uint64(j)
				break
			}
		}

		out = append(out, sealevel.InstructionAccount{
			IndexInTransaction: uint64(index),
			IndexInCaller:      uint64(index),
			IndexInCallee:      indexInCallee,
			IsSigner:           km.IsSigner(acct.Pubkey),
			IsWritable:         km.IsWritable(acct.Pubkey),
		})
	}
	return out
}
