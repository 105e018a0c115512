// Package harness executes instructions against a lightweight sealevel
// runtime and reports their effects, without a validator.
package harness

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/compile"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/fees"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

// Harness owns a program cache and a sysvar snapshot and runs instructions
// against them. It is safe for concurrent use.
type Harness struct {
	engine         sealevel.Engine
	programs       *sealevel.ProgramCache
	sysvars        *sysvar.Sysvars
	features       *features.Features
	budget         cu.ComputeBudget
	log            sealevel.Logger
	metrics        *metrics
	checkRentState bool
}

func New(config Config) *Harness {
	engine := config.Engine
	if engine == nil {
		engine = &sealevel.Runtime{VM: config.VM}
	}

	f := config.Features
	if f == nil {
		f = features.AllEnabledFeatures()
	}

	sysvars := config.Sysvars
	if sysvars == nil {
		sysvars = sysvar.NewSysvars()
	}

	programs := sealevel.NewProgramCache()
	programs.SetRent(sysvars.Rent())

	h := &Harness{
		engine:         engine,
		programs:       programs,
		sysvars:        sysvars,
		features:       f,
		budget:         config.ComputeBudget.WithDefaults(),
		metrics:        newMetrics(config.Metrics),
		checkRentState: config.CheckRentState,
	}
	if config.Verbose {
		h.log = &sealevel.KlogLogger{Prefix: "program log: "}
	}

	klog.V(2).Infof("harness ready: compute unit limit %d, %d features enabled", h.budget.ComputeUnitLimit, len(f.AllEnabled()))
	return h
}

func NewDefault() *Harness {
	return New(Config{})
}

func (h *Harness) ProgramCache() *sealevel.ProgramCache {
	return h.programs
}

// Sysvars returns the live snapshot. Changes are seen by later executions.
func (h *Harness) Sysvars() *sysvar.Sysvars {
	return h.sysvars
}

func (h *Harness) Features() *features.Features {
	return h.features
}

func (h *Harness) ComputeBudget() cu.ComputeBudget {
	return h.budget
}

// AddProgram caches elf as programId's executable, deployed at the current slot.
func (h *Harness) AddProgram(programId solana.PublicKey, loaderKey solana.PublicKey, elf []byte) {
	h.programs.AddProgramAt(programId, loaderKey, elf, h.sysvars.Clock().Slot)
}

func (h *Harness) AddBuiltin(builtin sealevel.Builtin) {
	h.programs.AddBuiltin(builtin)
}

func (h *Harness) WarpToSlot(slot uint64) {
	h.sysvars.WarpToSlot(slot)
}

func (h *Harness) ExpireBlockhash() {
	h.sysvars.ExpireBlockhash()
}

// SetRent updates both the sysvar and the rent used to fund program stubs.
func (h *Harness) SetRent(rent sysvar.Rent) {
	h.sysvars.SetRent(rent)
	h.programs.SetRent(rent)
}

// MinimumBalanceForRentExemption never returns less than one lamport.
func (h *Harness) MinimumBalanceForRentExemption(dataLen uint64) uint64 {
	return max(1, h.sysvars.Rent().MinimumBalance(dataLen))
}

func (h *Harness) environment(sysvars *sysvar.Sysvars) *sealevel.Environment {
	return &sealevel.Environment{
		LamportsPerSignature: fees.DefaultLamportsPerSignature,
		Features:             h.features,
		Sysvars:              sysvars,
		Programs:             h.programs,
		Log:                  h.log,
	}
}

// sysvarOverlay returns base with every sysvar account in accts applied on
// top, so programs reading the sysvar cache see the same values as the
// accounts they were handed. base is returned as is when accts holds none.
func sysvarOverlay(base *sysvar.Sysvars, accts []accounts.KeyedAccount) *sysvar.Sysvars {
	overlay := base
	for _, ka := range accts {
		kind, ok := sysvar.KindForAddress(ka.Key)
		if !ok {
			continue
		}
		if overlay == base {
			overlay = base.Snapshot()
		}
		if _, err := overlay.Absorb(ka.Key, ka.Account.Data); err != nil {
			klog.Errorf("ignoring supplied %s account: %s", kind, err)
		}
	}
	return overlay
}

// loaderKeyFor resolves the owner a missing program account is stubbed
// with. Programs the cache has never seen are a setup error.
func (h *Harness) loaderKeyFor(programId solana.PublicKey, source compile.Source) solana.PublicKey {
	if sealevel.IsPrecompile(programId) {
		return sealevel.NativeLoaderAddr
	}
	if acct, ok := source.Get(programId); ok && acct.Owner == sealevel.NativeLoaderAddr {
		return sealevel.NativeLoaderAddr
	}
	return h.programs.MustLoad(programId).LoaderKey
}

// harnessSource fills gaps in a caller's accounts with what the harness
// already knows: sysvar accounts from the snapshot and stubs for cached
// programs.
type harnessSource struct {
	compile.Source
	sysvars  *sysvar.Sysvars
	programs *sealevel.ProgramCache
}

func (h *Harness) source(src compile.Source, sysvars *sysvar.Sysvars) compile.Source {
	return harnessSource{Source: src, sysvars: sysvars, programs: h.programs}
}

func (s harnessSource) DefaultFor(pubkey solana.PublicKey) accounts.Account {
	if kind, ok := sysvar.KindForAddress(pubkey); ok {
		return s.sysvars.Account(kind)
	}
	if acct, ok := s.programs.ProgramAccount(pubkey); ok {
		return acct
	}
	return s.Source.DefaultFor(pubkey)
}
