package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/sealevel"
)

func TestParseMeta(t *testing.T) {
	key := sealevel.SystemProgramAddr.String()

	meta, err := parseMeta(key)
	require.NoError(t, err)
	assert.Equal(t, sealevel.AccountMeta{Pubkey: sealevel.SystemProgramAddr}, meta)

	meta, err = parseMeta(key + ":sw")
	require.NoError(t, err)
	assert.True(t, meta.IsSigner)
	assert.True(t, meta.IsWritable)

	meta, err = parseMeta(key + ":w")
	require.NoError(t, err)
	assert.False(t, meta.IsSigner)
	assert.True(t, meta.IsWritable)

	_, err = parseMeta(key + ":x")
	assert.Error(t, err)
	_, err = parseMeta("not-a-key")
	assert.Error(t, err)
}
