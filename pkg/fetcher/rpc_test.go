package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/rpcclient"
	"go.firedancer.io/harness/pkg/sealevel"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers getMultipleAccounts from a fixed set of accounts.
type fakeNode struct {
	t        *testing.T
	accounts map[string]accounts.Account
	failWith *RPCError

	mu       sync.Mutex
	requests [][]string
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	require.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))
	require.Equal(n.t, "getMultipleAccounts", req.Method)
	require.Len(n.t, req.Params, 2)

	var keys []string
	require.NoError(n.t, json.Unmarshal(req.Params[0], &keys))
	var opts map[string]any
	require.NoError(n.t, json.Unmarshal(req.Params[1], &opts))
	assert.Equal(n.t, "base64", opts["encoding"])
	assert.Equal(n.t, "confirmed", opts["commitment"])

	n.mu.Lock()
	n.requests = append(n.requests, keys)
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if n.failWith != nil {
		resp["error"] = map[string]any{"code": n.failWith.Code, "message": n.failWith.Message}
	} else {
		values := make([]any, len(keys))
		for i, key := range keys {
			acct, ok := n.accounts[key]
			if !ok {
				continue
			}
			values[i] = map[string]any{
				"lamports":   acct.Lamports,
				"data":       []string{base64.StdEncoding.EncodeToString(acct.Data), "base64"},
				"owner":      acct.Owner.String(),
				"executable": acct.Executable,
				"rentEpoch":  acct.RentEpoch,
				"space":      len(acct.Data),
			}
		}
		resp["result"] = map[string]any{"context": map[string]any{"slot": 100}, "value": values}
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(n.t, json.NewEncoder(w).Encode(resp))
}

func newFakeNode(t *testing.T, accts []accounts.KeyedAccount) (*fakeNode, *RpcFetcher) {
	node := &fakeNode{t: t, accounts: make(map[string]accounts.Account)}
	for _, ka := range accts {
		node.accounts[ka.Key.String()] = ka.Account
	}
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)
	return node, NewRpcFetcherWithClient(rpcclient.NewRpcClient(server.URL))
}

func TestRpcFetcher_FetchAccounts(t *testing.T) {
	present := accounts.KeyedAccount{Key: solana.NewWallet().PublicKey(), Account: accounts.Account{
		Lamports: 42, Data: []byte{9, 8, 7}, Owner: sealevel.BpfLoaderAddr, Executable: true, RentEpoch: 3,
	}}
	missing := solana.NewWallet().PublicKey()
	_, fetcher := newFakeNode(t, []accounts.KeyedAccount{present})

	accts, err := fetcher.FetchAccounts(context.Background(), []solana.PublicKey{missing, present.Key})
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, present.Key, accts[0].Key)
	assert.True(t, present.Account.Equal(&accts[0].Account))
}

func TestRpcFetcher_FetchAccountsWithDefault(t *testing.T) {
	present := accounts.KeyedAccount{Key: solana.NewWallet().PublicKey(), Account: accounts.Account{Lamports: 1, Owner: sealevel.SystemProgramAddr}}
	missing := solana.NewWallet().PublicKey()
	_, fetcher := newFakeNode(t, []accounts.KeyedAccount{present})

	accts, err := fetcher.FetchAccountsWithDefault(context.Background(), []solana.PublicKey{missing, present.Key})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, missing, accts[0].Key)
	assert.Equal(t, accounts.Account{Owner: sealevel.SystemProgramAddr}, accts[0].Account)
	assert.Equal(t, uint64(1), accts[1].Account.Lamports)

	fetcher.DefaultForMissing = func(solana.PublicKey) accounts.Account {
		return accounts.Account{Lamports: 99, Owner: sealevel.SystemProgramAddr}
	}
	accts, err = fetcher.FetchAccountsWithDefault(context.Background(), []solana.PublicKey{missing})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), accts[0].Account.Lamports)
}

func TestRpcFetcher_ChunksRequestsAndKeepsOrder(t *testing.T) {
	var accts []accounts.KeyedAccount
	var keys []solana.PublicKey
	for i := 0; i < 5; i++ {
		ka := accounts.KeyedAccount{Key: solana.NewWallet().PublicKey(), Account: accounts.Account{Lamports: uint64(i + 1), Owner: sealevel.SystemProgramAddr}}
		accts = append(accts, ka)
		keys = append(keys, ka.Key)
	}
	node, fetcher := newFakeNode(t, accts)
	fetcher.ChunkSize = 2

	fetched, err := fetcher.FetchAccounts(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, fetched, 5)
	for i, ka := range fetched {
		assert.Equal(t, keys[i], ka.Key)
		assert.Equal(t, uint64(i+1), ka.Account.Lamports)
	}

	node.mu.Lock()
	defer node.mu.Unlock()
	require.Len(t, node.requests, 3)
	total := 0
	for _, req := range node.requests {
		assert.LessOrEqual(t, len(req), 2)
		total += len(req)
	}
	assert.Equal(t, 5, total)
}

func TestRpcFetcher_RpcError(t *testing.T) {
	node, fetcher := newFakeNode(t, nil)
	node.failWith = &RPCError{Code: -32602, Message: "Invalid param: too many accounts"}

	_, err := fetcher.FetchAccounts(context.Background(), []solana.PublicKey{solana.NewWallet().PublicKey()})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "Invalid param: too many accounts", rpcErr.Message)
}

func TestRpcFetcher_NoKeys(t *testing.T) {
	node, fetcher := newFakeNode(t, nil)

	accts, err := fetcher.FetchAccounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, accts)
	assert.Empty(t, node.requests)
}
