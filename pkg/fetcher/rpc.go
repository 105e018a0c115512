package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/rpcclient"
	"go.firedancer.io/harness/pkg/sealevel"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// MaxAccountsPerRequest is the getMultipleAccounts limit of public RPC nodes.
const MaxAccountsPerRequest = 100

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type AccountClient interface {
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error)
}

type RpcFetcher struct {
	client AccountClient

	// ChunkSize caps the keys sent per request. Defaults to MaxAccountsPerRequest.
	ChunkSize int
	// Concurrency caps in-flight requests. Zero means unlimited.
	Concurrency int
	// DefaultForMissing builds the image of an account the node does not
	// hold. Defaults to an empty system account.
	DefaultForMissing func(solana.PublicKey) accounts.Account
}

func NewRpcFetcher(endpoint string) *RpcFetcher {
	return NewRpcFetcherWithClient(rpcclient.NewRpcClient(endpoint))
}

func NewRpcFetcherWithClient(client AccountClient) *RpcFetcher {
	return &RpcFetcher{client: client, ChunkSize: MaxAccountsPerRequest, Concurrency: 4}
}

// FetchAccounts returns the accounts the node holds, in key order. Missing
// accounts are left out.
func (f *RpcFetcher) FetchAccounts(ctx context.Context, keys []solana.PublicKey) ([]accounts.KeyedAccount, error) {
	found, err := f.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]accounts.KeyedAccount, 0, len(keys))
	for i, acct := range found {
		if acct != nil {
			out = append(out, accounts.KeyedAccount{Key: keys[i], Account: *acct})
		}
	}
	return out, nil
}

// FetchAccountsWithDefault returns one account per key, filling the ones
// the node does not hold with DefaultForMissing.
func (f *RpcFetcher) FetchAccountsWithDefault(ctx context.Context, keys []solana.PublicKey) ([]accounts.KeyedAccount, error) {
	found, err := f.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}
	defaultFor := f.DefaultForMissing
	if defaultFor == nil {
		defaultFor = func(solana.PublicKey) accounts.Account {
			return accounts.Account{Owner: sealevel.SystemProgramAddr}
		}
	}
	out := make([]accounts.KeyedAccount, len(keys))
	for i, acct := range found {
		if acct == nil {
			out[i] = accounts.KeyedAccount{Key: keys[i], Account: defaultFor(keys[i])}
		} else {
			out[i] = accounts.KeyedAccount{Key: keys[i], Account: *acct}
		}
	}
	return out, nil
}

func (f *RpcFetcher) fetch(ctx context.Context, keys []solana.PublicKey) ([]*accounts.Account, error) {
	chunkSize := f.ChunkSize
	if chunkSize <= 0 || chunkSize > MaxAccountsPerRequest {
		chunkSize = MaxAccountsPerRequest
	}

	found := make([]*accounts.Account, len(keys))
	group, ctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		group.SetLimit(f.Concurrency)
	}
	for start := 0; start < len(keys); start += chunkSize {
		start, end := start, min(start+chunkSize, len(keys))
		group.Go(func() error {
			chunk := keys[start:end]
			values, err := f.client.GetMultipleAccounts(ctx, chunk)
			if err != nil {
				return rpcError(err)
			}
			if len(values) != len(chunk) {
				return fmt.Errorf("node returned %d accounts for %d keys", len(values), len(chunk))
			}
			for i, v := range values {
				if v == nil {
					continue
				}
				found[start+i] = fromRpc(v)
			}
			klog.V(3).Infof("fetched accounts %d..%d", start, end)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

func fromRpc(v *rpc.Account) *accounts.Account {
	acct := &accounts.Account{
		Lamports:   v.Lamports,
		Owner:      v.Owner,
		Executable: v.Executable,
	}
	if v.Data != nil {
		acct.Data = v.Data.GetBinary()
	}
	if v.RentEpoch != nil && v.RentEpoch.IsUint64() {
		acct.RentEpoch = v.RentEpoch.Uint64()
	}
	return acct
}

func rpcError(err error) error {
	var jsonErr *jsonrpc.RPCError
	if errors.As(err, &jsonErr) {
		return &RPCError{Code: jsonErr.Code, Message: jsonErr.Message}
	}
	return err
}
