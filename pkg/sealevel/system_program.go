package sealevel

import (
	"bytes"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const SystemProgMaxPermittedDataLen = MaxPermittedDataLength

const (
	SystemProgramInstrTypeCreateAccount = iota
	SystemProgramInstrTypeAssign
	SystemProgramInstrTypeTransfer
	SystemProgramInstrTypeCreateAccountWithSeed
	SystemProgramInstrTypeAdvanceNonceAccount
	SystemProgramInstrTypeWithdrawNonceAccount
	SystemProgramInstrTypeInitializeNonceAccount
	SystemProgramInstrTypeAuthorizeNonceAccount
	SystemProgramInstrTypeAllocate
	SystemProgramInstrTypeAllocateWithSeed
	SystemProgramInstrTypeAssignWithSeed
	SystemProgramInstrTypeTransferWithSeed
	SystemProgramInstrTypeUpgradeNonceAccount
)

// instruction data beyond the packet limit is never decoded
const systemProgMaxInstructionDataLen = 1232

type systemArg int

const (
	argLamports systemArg = iota
	argSpace
	argOwner
	argBase
	argSeed
)

type systemLayout struct {
	args        []systemArg
	numAccounts uint64
}

// Wire order of every supported instruction's arguments. For
// TransferWithSeed the seed and owner are those of the source account.
// Durable nonce instructions need the recent blockhashes sysvar, which is
// not modelled, so they are absent.
var systemLayouts = map[uint32]systemLayout{
	SystemProgramInstrTypeCreateAccount:         {[]systemArg{argLamports, argSpace, argOwner}, 2},
	SystemProgramInstrTypeAssign:                {[]systemArg{argOwner}, 1},
	SystemProgramInstrTypeTransfer:              {[]systemArg{argLamports}, 2},
	SystemProgramInstrTypeCreateAccountWithSeed: {[]systemArg{argBase, argSeed, argLamports, argSpace, argOwner}, 2},
	SystemProgramInstrTypeAllocate:              {[]systemArg{argSpace}, 1},
	SystemProgramInstrTypeAllocateWithSeed:      {[]systemArg{argBase, argSeed, argSpace, argOwner}, 1},
	SystemProgramInstrTypeAssignWithSeed:        {[]systemArg{argBase, argSeed, argOwner}, 1},
	SystemProgramInstrTypeTransferWithSeed:      {[]systemArg{argLamports, argSeed, argOwner}, 3},
}

// systemInstruction is the union of the system program's arguments.
type systemInstruction struct {
	kind     uint32
	lamports uint64
	space    uint64
	owner    solana.PublicKey
	base     solana.PublicKey
	seed     string
}

func (ix *systemInstruction) withSeed() bool {
	switch ix.kind {
	case SystemProgramInstrTypeCreateAccountWithSeed,
		SystemProgramInstrTypeAllocateWithSeed,
		SystemProgramInstrTypeAssignWithSeed:
		return true
	}
	return false
}

func decodeSystemInstruction(data []byte) (*systemInstruction, uint64, error) {
	decoder := bin.NewBinDecoder(data)
	kind, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, 0, InstrErrInvalidInstructionData
	}
	layout, ok := systemLayouts[kind]
	if !ok {
		klog.V(2).Infof("system program: instruction %d not supported", kind)
		return nil, 0, InstrErrInvalidInstructionData
	}

	ix := &systemInstruction{kind: kind}
	for _, arg := range layout.args {
		switch arg {
		case argLamports:
			ix.lamports, err = decoder.ReadUint64(bin.LE)
		case argSpace:
			ix.space, err = decoder.ReadUint64(bin.LE)
		case argOwner:
			ix.owner, err = readPubkey(decoder)
		case argBase:
			ix.base, err = readPubkey(decoder)
		case argSeed:
			ix.seed, err = decoder.ReadRustString()
		}
		if err != nil {
			return nil, 0, InstrErrInvalidInstructionData
		}
	}
	if decoder.Position() > systemProgMaxInstructionDataLen {
		return nil, 0, InstrErrInvalidInstructionData
	}
	return ix, layout.numAccounts, nil
}

func readPubkey(decoder *bin.Decoder) (solana.PublicKey, error) {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(pk), nil
}

// NewTransferInstruction builds a system transfer of lamports from -> to.
func NewTransferInstruction(from, to solana.PublicKey, lamports uint64) Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	if err := encoder.WriteUint32(SystemProgramInstrTypeTransfer, bin.LE); err != nil {
		panic(err)
	}
	if err := encoder.WriteUint64(lamports, bin.LE); err != nil {
		panic(err)
	}
	return Instruction{
		ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: false, IsWritable: true},
		},
		Data: buf.Bytes(),
	}
}

// systemCall is one invocation of the system program.
type systemCall struct {
	txCtx    *TransactionCtx
	instrCtx *InstructionCtx
	signers  []solana.PublicKey
}

func SystemProgramExecute(execCtx *ExecutionCtx) error {
	if err := execCtx.ComputeMeter.Consume(CUSystemProgramDefaultComputeUnits); err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}
	ix, numAccounts, err := decodeSystemInstruction(instrCtx.Data)
	if err != nil {
		return err
	}
	if err = instrCtx.CheckNumOfInstructionAccounts(numAccounts); err != nil {
		return err
	}
	signers, err := instrCtx.Signers(txCtx)
	if err != nil {
		return err
	}
	call := &systemCall{txCtx: txCtx, instrCtx: instrCtx, signers: signers}

	switch ix.kind {
	case SystemProgramInstrTypeCreateAccount, SystemProgramInstrTypeCreateAccountWithSeed:
		return call.createAccount(ix)
	case SystemProgramInstrTypeTransfer:
		return call.transfer(ix.lamports)
	case SystemProgramInstrTypeTransferWithSeed:
		return call.transferWithSeed(ix)
	default:
		return call.allocateOrAssign(ix)
	}
}

// target resolves the address at instruction account idx and the key that
// must sign for it. A seeded address is checked against its derivation and
// is authorized by its base.
func (call *systemCall) target(ix *systemInstruction, idx uint64) (addr, signer solana.PublicKey, err error) {
	addr, err = call.address(idx)
	if err != nil || !ix.withSeed() {
		return addr, addr, err
	}
	derived, err := createWithSeed(ix.base, ix.seed, ix.owner)
	if err != nil {
		return addr, addr, err
	}
	if addr != derived {
		klog.V(2).Infof("system program: address %s does not match derived address %s", addr, derived)
		return addr, addr, SystemProgErrAddressWithSeedMismatch
	}
	return addr, ix.base, nil
}

func (call *systemCall) address(idx uint64) (solana.PublicKey, error) {
	txIdx, err := call.instrCtx.IndexOfInstructionAccountInTransaction(idx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return call.txCtx.KeyOfAccountAtIndex(txIdx)
}

func (call *systemCall) createAccount(ix *systemInstruction) error {
	toAddr, signer, err := call.target(ix, 1)
	if err != nil {
		return err
	}
	to, err := call.instrCtx.BorrowInstructionAccount(call.txCtx, 1)
	if err != nil {
		return err
	}
	defer to.Drop()

	if to.Lamports() > 0 {
		klog.V(2).Infof("CreateAccount: account %s already in use (non-zero lamports)", toAddr)
		return SystemProgErrAccountAlreadyInUse
	}
	if err = call.allocate(to, toAddr, signer, ix.space); err != nil {
		return err
	}
	if err = call.assign(to, toAddr, signer, ix.owner); err != nil {
		return err
	}
	to.Drop()

	return call.transfer(ix.lamports)
}

func (call *systemCall) allocateOrAssign(ix *systemInstruction) error {
	addr, signer, err := call.target(ix, 0)
	if err != nil {
		return err
	}
	acct, err := call.instrCtx.BorrowInstructionAccount(call.txCtx, 0)
	if err != nil {
		return err
	}
	defer acct.Drop()

	switch ix.kind {
	case SystemProgramInstrTypeAllocate:
		return call.allocate(acct, addr, signer, ix.space)
	case SystemProgramInstrTypeAllocateWithSeed:
		if err := call.allocate(acct, addr, signer, ix.space); err != nil {
			return err
		}
	}
	return call.assign(acct, addr, signer, ix.owner)
}

func (call *systemCall) allocate(acct *BorrowedAccount, address, signer solana.PublicKey, space uint64) error {
	if verifySigner(signer, call.signers) != nil {
		klog.V(2).Infof("Allocate: %s must sign for account %s", signer, address)
		return InstrErrMissingRequiredSignature
	}
	if len(acct.Data()) != 0 || acct.Owner() != SystemProgramAddr {
		klog.V(2).Infof("Allocate: account %s already in use", address)
		return SystemProgErrAccountAlreadyInUse
	}
	if space > SystemProgMaxPermittedDataLen {
		klog.V(2).Infof("Allocate: requested %d, max allowed %d", space, SystemProgMaxPermittedDataLen)
		return SystemProgErrInvalidAccountDataLength
	}
	return acct.SetDataLength(space)
}

func (call *systemCall) assign(acct *BorrowedAccount, address, signer solana.PublicKey, owner solana.PublicKey) error {
	if acct.Owner() == owner {
		return nil
	}
	if verifySigner(signer, call.signers) != nil {
		klog.V(2).Infof("Assign: %s must sign for account %s", signer, address)
		return InstrErrMissingRequiredSignature
	}
	return acct.SetOwner(owner)
}

// transfer moves lamports from instruction account 0, which must sign, to 1.
func (call *systemCall) transfer(lamports uint64) error {
	isSigner, err := call.instrCtx.IsInstructionAccountSigner(0)
	if err != nil {
		return err
	}
	if !isSigner {
		klog.V(2).Infof("Transfer: 'from' account must sign")
		return InstrErrMissingRequiredSignature
	}
	return call.move(0, 1, lamports)
}

// transferWithSeed moves lamports from account 0, derived from the signing
// base at 1, to account 2.
func (call *systemCall) transferWithSeed(ix *systemInstruction) error {
	isSigner, err := call.instrCtx.IsInstructionAccountSigner(1)
	if err != nil {
		return err
	}
	if !isSigner {
		klog.V(2).Infof("TransferWithSeed: base account must sign")
		return InstrErrMissingRequiredSignature
	}

	base, err := call.address(1)
	if err != nil {
		return err
	}
	derived, err := createWithSeed(base, ix.seed, ix.owner)
	if err != nil {
		return err
	}
	from, err := call.address(0)
	if err != nil {
		return err
	}
	if from != derived {
		klog.V(2).Infof("TransferWithSeed: from address %s does not match derived address %s", from, derived)
		return SystemProgErrAddressWithSeedMismatch
	}
	return call.move(0, 2, ix.lamports)
}

func (call *systemCall) move(fromIdx, toIdx uint64, lamports uint64) error {
	from, err := call.instrCtx.BorrowInstructionAccount(call.txCtx, fromIdx)
	if err != nil {
		return err
	}
	defer from.Drop()

	if len(from.Data()) != 0 {
		klog.V(2).Infof("Transfer: 'from' must not carry data")
		return InstrErrInvalidArgument
	}
	if lamports > from.Lamports() {
		klog.V(2).Infof("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return SystemProgErrResultWithNegativeLamports
	}
	if err = from.CheckedSubLamports(lamports); err != nil {
		return err
	}
	from.Drop()

	to, err := call.instrCtx.BorrowInstructionAccount(call.txCtx, toIdx)
	if err != nil {
		return err
	}
	defer to.Drop()
	return to.CheckedAddLamports(lamports)
}

func createWithSeed(base solana.PublicKey, seed string, owner solana.PublicKey) (solana.PublicKey, error) {
	addr, err := solana.CreateWithSeed(base, seed, owner)
	if errors.Is(err, solana.ErrMaxSeedLengthExceeded) {
		return addr, InstrErrMaxSeedLengthExceeded
	}
	if err != nil {
		return addr, InstrErrIllegalOwner
	}
	return addr, nil
}
