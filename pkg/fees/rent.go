package fees

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/base58"
	"go.firedancer.io/harness/pkg/sysvar"
)

const IncineratorAddrStr = "1nc1nerator11111111111111111111111111111111"

var IncineratorAddr = solana.PublicKey(base58.MustDecodeFromString(IncineratorAddrStr))

var ErrInsufficientFundsForRent = errors.New("InsufficientFundsForRent")

type RentState uint8

const (
	RentStateUninitialized RentState = iota
	RentStateRentPaying
	RentStateRentExempt
)

func (s RentState) String() string {
	switch s {
	case RentStateUninitialized:
		return "uninitialized"
	case RentStateRentPaying:
		return "rent-paying"
	case RentStateRentExempt:
		return "rent-exempt"
	}
	return fmt.Sprintf("RentState(%d)", uint8(s))
}

type RentStateInfo struct {
	State    RentState
	Lamports uint64
	DataSize uint64
}

func RentStateOf(acct *accounts.Account, rent sysvar.Rent) RentStateInfo {
	dataSize := uint64(len(acct.Data))
	switch {
	case acct.Lamports == 0:
		return RentStateInfo{State: RentStateUninitialized}
	case rent.IsExempt(acct.Lamports, dataSize):
		return RentStateInfo{State: RentStateRentExempt}
	default:
		return RentStateInfo{State: RentStateRentPaying, Lamports: acct.Lamports, DataSize: dataSize}
	}
}

// TransitionAllowed reports whether an account may move from pre to post.
// An account may only stay rent-paying if its size is unchanged and its
// balance did not grow.
func TransitionAllowed(pre, post RentStateInfo) bool {
	if post.State != RentStateRentPaying {
		return true
	}
	if pre.State != RentStateRentPaying {
		return false
	}
	return post.DataSize == pre.DataSize && post.Lamports <= pre.Lamports
}

// VerifyRentStateChanges checks every writable account of a transaction.
// pre and post are aligned by index; writable selects which entries count.
func VerifyRentStateChanges(pre, post []accounts.KeyedAccount, writable func(solana.PublicKey) bool, rent sysvar.Rent) error {
	if len(pre) != len(post) {
		panic("pre and post account lists must be the same length")
	}

	for i := range pre {
		key := pre[i].Key
		if key == IncineratorAddr || !writable(key) {
			continue
		}
		preState := RentStateOf(&pre[i].Account, rent)
		postState := RentStateOf(&post[i].Account, rent)
		if !TransitionAllowed(preState, postState) {
			return fmt.Errorf("%w: account %s went from %s to %s", ErrInsufficientFundsForRent, key, preState.State, postState.State)
		}
	}
	return nil
}
