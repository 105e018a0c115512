package rpcclient

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type RpcClient struct {
	client *rpc.Client
}

func NewRpcClient(endpoint string) *RpcClient {
	client := rpc.New(endpoint)
	return &RpcClient{client: client}
}

// GetMultipleAccounts fetches base64 encoded account images at confirmed
// commitment. Accounts the node does not know about are nil.
func (c *RpcClient) GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error) {
	result, err := c.client.GetMultipleAccountsWithOpts(
		ctx,
		keys,
		&rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

func (c *RpcClient) GetSlot(ctx context.Context) (uint64, error) {
	return c.client.GetSlot(ctx, rpc.CommitmentConfirmed)
}
