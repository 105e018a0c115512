package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/sealevel"
	"k8s.io/klog/v2"
)

var ErrProgramNotFound = errors.New("program not found")

// ProgramSearchDirs lists the directories LoadProgramElf looks in, in order:
// tests/fixtures, $BPF_OUT_DIR, $SBF_OUT_DIR and the working directory.
// Unset variables are skipped.
func ProgramSearchDirs() []string {
	dirs := []string{filepath.Join("tests", "fixtures")}
	for _, env := range []string{"BPF_OUT_DIR", "SBF_OUT_DIR"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}

// LoadProgramElf reads <name>.so from the first search directory holding it.
func LoadProgramElf(name string) ([]byte, error) {
	file := name + ".so"
	for _, dir := range ProgramSearchDirs() {
		path := filepath.Join(dir, file)
		elf, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read program %s: %w", path, err)
		}
		klog.V(2).Infof("loaded program %s from %s", name, path)
		return elf, nil
	}
	return nil, fmt.Errorf("%w: %s in %v", ErrProgramNotFound, file, ProgramSearchDirs())
}

// AddProgramByName finds <name>.so with LoadProgramElf and caches it.
func (h *Harness) AddProgramByName(programId solana.PublicKey, name string, loaderKey solana.PublicKey) error {
	elf, err := LoadProgramElf(name)
	if err != nil {
		return err
	}
	h.AddProgram(programId, loaderKey, elf)
	return nil
}

// NewWithProgram returns a default harness with <name>.so cached as
// programId under the upgradeable loader.
func NewWithProgram(programId solana.PublicKey, name string) (*Harness, error) {
	h := NewDefault()
	if err := h.AddProgramByName(programId, name, sealevel.BpfLoaderUpgradeableAddr); err != nil {
		return nil, err
	}
	return h, nil
}
