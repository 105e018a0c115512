package features

import (
	"fmt"
	"slices"

	"go.firedancer.io/harness/pkg/base58"
)

// Features tracks which gates are active and from which slot. A Features
// value is configured up front and then only read; it is not safe for
// concurrent mutation.
type Features struct {
	enabled map[[32]byte]uint64
}

func NewFeaturesDefault() *Features {
	return &Features{enabled: make(map[[32]byte]uint64)}
}

// AllEnabledFeatures returns a feature set with every known gate active from slot 0.
func AllEnabledFeatures() *Features {
	f := NewFeaturesDefault()
	for _, gate := range AllGates {
		f.EnableFeature(gate, 0)
	}
	return f
}

func (f *Features) EnableFeature(gate FeatureGate, slot uint64) {
	f.enabled[gate.Address] = slot
}

func (f *Features) DisableFeature(gate FeatureGate) {
	delete(f.enabled, gate.Address)
}

func (f *Features) IsActive(gate FeatureGate) bool {
	_, ok := f.enabled[gate.Address]
	return ok
}

func (f *Features) ActivationSlot(gate FeatureGate) (uint64, bool) {
	slot, ok := f.enabled[gate.Address]
	return slot, ok
}

// EnableByName activates the gate named either by its Name or its base58 address.
func (f *Features) EnableByName(name string, slot uint64) error {
	for _, gate := range AllGates {
		if gate.Name == name || base58.Encode(gate.Address[:]) == name {
			f.EnableFeature(gate, slot)
			return nil
		}
	}
	return fmt.Errorf("unknown feature gate %q", name)
}

func (f *Features) Clone() *Features {
	c := NewFeaturesDefault()
	for k, v := range f.enabled {
		c.enabled[k] = v
	}
	return c
}

func (f *Features) AllEnabled() []string {
	var enabled []string
	for _, gate := range AllGates {
		if f.IsActive(gate) {
			enabled = append(enabled, fmt.Sprintf("feature %s (%s) enabled", gate.Name, base58.Encode(gate.Address[:])))
		}
	}
	slices.Sort(enabled)
	return enabled
}
