package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The TestFeatures_EnableAndDisable function tests that the
// enable and disable features work correctly.
func TestFeatures_EnableAndDisable(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(StopTruncatingStringsInSyscalls, 0)
	assert.Equal(t, f.IsActive(StopTruncatingStringsInSyscalls), true)
	f.DisableFeature(StopTruncatingStringsInSyscalls)
	assert.Equal(t, f.IsActive(StopTruncatingStringsInSyscalls), false)
	f.EnableFeature(StopTruncatingStringsInSyscalls, 0)
	assert.Equal(t, f.IsActive(StopTruncatingStringsInSyscalls), true)
}

// The TestFeatures_ListEnabled function tests that the AllEnabled function works
// as expected.
func TestFeatures_ListEnabled(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(StopTruncatingStringsInSyscalls, 0)
	assert.Equal(t, f.AllEnabled(), []string{"feature StopTruncatingStringsInSyscalls (16FMCmgLzCNNz6eTwGanbyN2ZxvTBSLuQ6DZhgeMshg) enabled"})
}

func TestFeatures_AllEnabledFeatures(t *testing.T) {
	f := AllEnabledFeatures()
	for _, gate := range AllGates {
		assert.True(t, f.IsActive(gate), gate.Name)
	}
	assert.Len(t, f.AllEnabled(), len(AllGates))
}

func TestFeatures_EnableByName(t *testing.T) {
	f := NewFeaturesDefault()
	assert.NoError(t, f.EnableByName("LastRestartSlotSysvar", 10))
	assert.NoError(t, f.EnableByName("41tVp5qR1XwWRt5WifvtSQyuxtqQWJgEK8w91AtBqSwP", 0))
	assert.Error(t, f.EnableByName("NoSuchFeature", 0))

	slot, ok := f.ActivationSlot(LastRestartSlotSysvar)
	assert.True(t, ok)
	assert.Equal(t, uint64(10), slot)
	assert.True(t, f.IsActive(EnablePartitionedEpochReward))
}

func TestFeatures_CloneIsIndependent(t *testing.T) {
	f := AllEnabledFeatures()
	c := f.Clone()
	c.DisableFeature(LastRestartSlotSysvar)
	assert.True(t, f.IsActive(LastRestartSlotSysvar))
	assert.False(t, c.IsActive(LastRestartSlotSysvar))
}
