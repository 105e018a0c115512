package harness

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
	"gopkg.in/yaml.v3"
)

// Config configures a Harness. The zero value is usable: it runs the native
// runtime with no VM, the default compute budget and every feature enabled.
type Config struct {
	// Engine executes instructions. Defaults to a sealevel.Runtime driving VM.
	Engine sealevel.Engine
	VM     sealevel.VM

	ComputeBudget cu.ComputeBudget
	Features      *features.Features

	// Sysvars replaces the baseline sysvar snapshot.
	Sysvars *sysvar.Sysvars

	// Verbose forwards program logs to klog as they are emitted.
	Verbose bool

	// Metrics, if set, receives the harness collectors.
	Metrics prometheus.Registerer

	// CheckRentState rejects transactions that leave a writable account in a
	// disallowed rent state.
	CheckRentState bool
}

// FileConfig is the YAML form of Config.
type FileConfig struct {
	ComputeBudget  cu.ComputeBudget    `yaml:"compute_budget"`
	Features       []string            `yaml:"features"`
	AllFeatures    *bool               `yaml:"all_features"`
	Verbose        bool                `yaml:"verbose"`
	CheckRentState bool                `yaml:"check_rent_state"`
	Sysvars        SysvarOverrides     `yaml:"sysvars"`
	Programs       []ProgramFileConfig `yaml:"programs"`
}

type SysvarOverrides struct {
	Clock         *sysvar.Clock         `yaml:"clock"`
	Rent          *sysvar.Rent          `yaml:"rent"`
	EpochSchedule *sysvar.EpochSchedule `yaml:"epoch_schedule"`
}

// Apply writes every set override into sysvars.
func (o SysvarOverrides) Apply(sysvars *sysvar.Sysvars) {
	if o.Clock != nil {
		sysvars.SetClock(*o.Clock)
	}
	if o.Rent != nil {
		sysvars.SetRent(*o.Rent)
	}
	if o.EpochSchedule != nil {
		sysvars.SetEpochSchedule(*o.EpochSchedule)
	}
}

// ProgramFileConfig names a program to load from disk into the cache. Path
// wins over Name; a Name is resolved with LoadProgramElf.
type ProgramFileConfig struct {
	ProgramId string `yaml:"program_id"`
	Loader    string `yaml:"loader"`
	Path      string `yaml:"path"`
	Name      string `yaml:"name"`
}

func (p ProgramFileConfig) elf() ([]byte, error) {
	switch {
	case p.Path != "":
		return os.ReadFile(p.Path)
	case p.Name != "":
		return LoadProgramElf(p.Name)
	default:
		return nil, errors.New("neither path nor name is set")
	}
}

func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &fc, nil
}

// Config builds the runtime configuration. Features listed by name are
// enabled on top of an empty set unless all_features is true or omitted
// with no names given.
func (fc *FileConfig) Config() (Config, error) {
	allFeatures := len(fc.Features) == 0
	if fc.AllFeatures != nil {
		allFeatures = *fc.AllFeatures
	}

	var f *features.Features
	if allFeatures {
		f = features.AllEnabledFeatures()
	} else {
		f = features.NewFeaturesDefault()
	}
	for _, name := range fc.Features {
		if err := f.EnableByName(name, 0); err != nil {
			return Config{}, err
		}
	}

	sysvars := sysvar.NewSysvars()
	fc.Sysvars.Apply(sysvars)

	return Config{
		ComputeBudget:  fc.ComputeBudget.WithDefaults(),
		Features:       f,
		Sysvars:        sysvars,
		Verbose:        fc.Verbose,
		CheckRentState: fc.CheckRentState,
	}, nil
}

// LoadPrograms reads every configured program from disk into h's cache.
func (fc *FileConfig) LoadPrograms(h *Harness) error {
	for _, p := range fc.Programs {
		programId, err := solana.PublicKeyFromBase58(p.ProgramId)
		if err != nil {
			return fmt.Errorf("program %q: %w", p.ProgramId, err)
		}
		loader := sealevel.LoaderUpgradeable
		if p.Loader != "" {
			loader, err = sealevel.ParseLoaderKind(p.Loader)
			if err != nil {
				return fmt.Errorf("program %s: %w", programId, err)
			}
		}
		if loader == sealevel.LoaderNative {
			return fmt.Errorf("program %s: native programs are registered as builtins", programId)
		}
		elf, err := p.elf()
		if err != nil {
			return fmt.Errorf("failed to read program %s: %w", programId, err)
		}
		h.AddProgram(programId, loader.Key(), elf)
	}
	return nil
}
