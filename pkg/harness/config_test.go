package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/sealevel"
)

const testConfig = `
compute_budget:
  compute_unit_limit: 1400000
features:
  - EnablePartitionedEpochReward
verbose: true
check_rent_state: true
sysvars:
  clock:
    slot: 99
    unix_timestamp: 1700000000
  rent:
    lamports_per_byte_year: 1
    exemption_threshold: 1.0
    burn_percent: 0
`

func TestConfig_Parse(t *testing.T) {
	fc, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	config, err := fc.Config()
	require.NoError(t, err)

	assert.Equal(t, uint64(1400000), config.ComputeBudget.ComputeUnitLimit)
	assert.Equal(t, uint64(5), config.ComputeBudget.MaxInvokeStackHeight)
	assert.True(t, config.Features.IsActive(features.EnablePartitionedEpochReward))
	assert.False(t, config.Features.IsActive(features.LastRestartSlotSysvar))
	assert.True(t, config.Verbose)
	assert.True(t, config.CheckRentState)
	assert.Equal(t, uint64(99), config.Sysvars.Clock().Slot)
	assert.Equal(t, int64(1700000000), config.Sysvars.Clock().UnixTimestamp)

	h := New(config)
	assert.Equal(t, uint64(129), h.MinimumBalanceForRentExemption(1))
}

func TestConfig_Defaults(t *testing.T) {
	fc, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)
	config, err := fc.Config()
	require.NoError(t, err)

	for _, gate := range features.AllGates {
		assert.True(t, config.Features.IsActive(gate), gate.Name)
	}
	assert.Equal(t, uint64(200000), config.ComputeBudget.ComputeUnitLimit)
}

func TestConfig_UnknownFeature(t *testing.T) {
	fc, err := ParseConfig([]byte("features: [NoSuchFeature]"))
	require.NoError(t, err)
	_, err = fc.Config()
	assert.ErrorContains(t, err, "NoSuchFeature")
}

func TestConfig_LoadFileAndPrograms(t *testing.T) {
	dir := t.TempDir()
	programId := newKey()
	elfPath := filepath.Join(dir, "program.so")
	require.NoError(t, os.WriteFile(elfPath, []byte("\x7fELF-from-disk"), 0o644))

	configPath := filepath.Join(dir, "harness.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
programs:
  - program_id: `+programId.String()+`
    loader: loader-v4
    path: `+elfPath+`
`), 0o644))

	fc, err := LoadConfigFile(configPath)
	require.NoError(t, err)
	config, err := fc.Config()
	require.NoError(t, err)
	h := New(config)
	require.NoError(t, fc.LoadPrograms(h))

	entry := h.ProgramCache().MustLoad(programId)
	assert.Equal(t, sealevel.LoaderV4Addr, entry.LoaderKey)
	assert.Equal(t, []byte("\x7fELF-from-disk"), entry.Elf)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_ProgramByName(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SBF_OUT_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "named.so"), []byte("\x7fELF-named"), 0o644))
	programId := newKey()

	fc, err := ParseConfig([]byte("programs: [{program_id: " + programId.String() + ", name: named}]"))
	require.NoError(t, err)
	h := NewDefault()
	require.NoError(t, fc.LoadPrograms(h))

	entry := h.ProgramCache().MustLoad(programId)
	assert.Equal(t, sealevel.BpfLoaderUpgradeableAddr, entry.LoaderKey)
	assert.Equal(t, []byte("\x7fELF-named"), entry.Elf)

	fc, err = ParseConfig([]byte("programs: [{program_id: " + newKey().String() + "}]"))
	require.NoError(t, err)
	assert.ErrorContains(t, fc.LoadPrograms(h), "neither path nor name")
}

func TestConfig_NativeProgramRejected(t *testing.T) {
	fc, err := ParseConfig([]byte("programs: [{program_id: " + newKey().String() + ", loader: native, path: /dev/null}]"))
	require.NoError(t, err)
	assert.ErrorContains(t, fc.LoadPrograms(NewDefault()), "builtins")
}
