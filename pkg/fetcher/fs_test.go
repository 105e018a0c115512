package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sealevel"
)

const singleRecord = `{
  "pubkey": "Stake11111111111111111111111111111111111111",
  "account": {
    "lamports": 1000,
    "data": ["AQID", "base64"],
    "owner": "11111111111111111111111111111111",
    "executable": false,
    "rentEpoch": 18446744073709551615,
    "space": 3
  }
}`

const arrayRecords = `[
  {"pubkey": "Vote111111111111111111111111111111111111111",
   "account": {"lamports": 5, "data": ["", "base64"], "owner": "11111111111111111111111111111111", "executable": true, "rentEpoch": 0}},
  {"pubkey": "Config1111111111111111111111111111111111111",
   "account": {"lamports": 6, "data": ["{}", "jsonParsed"], "owner": "11111111111111111111111111111111", "executable": false, "rentEpoch": 0}}
]`

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestFromFile_SingleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stake.json")
	writeFile(t, path, singleRecord)

	accts, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111"), accts[0].Key)
	assert.Equal(t, accounts.Account{
		Lamports:  1000,
		Data:      []byte{1, 2, 3},
		Owner:     sealevel.SystemProgramAddr,
		RentEpoch: ^uint64(0),
	}, accts[0].Account)
}

func TestFromFile_ArrayAndNonBase64Data(t *testing.T) {
	path := filepath.Join(t.TempDir(), "many.json")
	writeFile(t, path, arrayRecords)

	accts, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.True(t, accts[0].Account.Executable)
	assert.Equal(t, uint64(6), accts[1].Account.Lamports)
	assert.Empty(t, accts[1].Account.Data)
}

func TestFromFile_Malformed(t *testing.T) {
	dir := t.TempDir()

	badJson := filepath.Join(dir, "bad.json")
	writeFile(t, badJson, "{not json")
	_, err := FromFile(badJson)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	badKey := filepath.Join(dir, "badkey.json")
	writeFile(t, badKey, `{"pubkey": "0OIl", "account": {"owner": "11111111111111111111111111111111"}}`)
	_, err = FromFile(badKey)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	badData := filepath.Join(dir, "baddata.json")
	writeFile(t, badData, `{"pubkey": "Vote111111111111111111111111111111111111111", "account": {"owner": "11111111111111111111111111111111", "data": ["@@@", "base64"]}}`)
	_, err = FromFile(badData)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = FromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFromDir_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), singleRecord)
	writeFile(t, filepath.Join(dir, "nested", "b.json"), arrayRecords)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not an account")

	accts, err := FromDir(dir)
	require.NoError(t, err)
	assert.Len(t, accts, 3)

	accts, err = FromPath(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Len(t, accts, 1)
}

func TestFromDir_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), singleRecord)
	writeFile(t, filepath.Join(dir, "b.json"), "[")

	_, err := FromDir(dir)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestWriteFile_ReadBack(t *testing.T) {
	accts := []accounts.KeyedAccount{
		{Key: solana.NewWallet().PublicKey(), Account: accounts.Account{Lamports: 7, Data: []byte("data"), Owner: sealevel.BpfLoaderAddr, Executable: true}},
		{Key: solana.NewWallet().PublicKey(), Account: accounts.Account{Lamports: 1, Owner: sealevel.SystemProgramAddr}},
	}
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFile(path, accts))

	loaded, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i := range accts {
		assert.Equal(t, accts[i].Key, loaded[i].Key)
		assert.True(t, accts[i].Account.Equal(&loaded[i].Account))
	}
}
