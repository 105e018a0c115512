package harness

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
)

// Check asserts one property of an InstructionResult.
type Check struct {
	desc string
	run  func(r *InstructionResult, rent sysvar.Rent) error
}

func (c Check) String() string {
	return c.desc
}

func CheckSuccess() Check {
	return Check{desc: "success", run: func(r *InstructionResult, _ sysvar.Rent) error {
		if r.ProgramResult != nil {
			return fmt.Errorf("expected success, got %w", r.ProgramResult)
		}
		return nil
	}}
}

// CheckErr matches the program result with errors.Is.
func CheckErr(want error) Check {
	return Check{desc: fmt.Sprintf("error %s", want), run: func(r *InstructionResult, _ sysvar.Rent) error {
		if !errors.Is(r.ProgramResult, want) {
			return fmt.Errorf("expected error %s, got %v", want, r.ProgramResult)
		}
		return nil
	}}
}

func CheckComputeUnits(units uint64) Check {
	return Check{desc: fmt.Sprintf("%d compute units", units), run: func(r *InstructionResult, _ sysvar.Rent) error {
		if r.ComputeUnitsConsumed != units {
			return fmt.Errorf("expected %d compute units consumed, got %d", units, r.ComputeUnitsConsumed)
		}
		return nil
	}}
}

func CheckReturnData(data []byte) Check {
	return Check{desc: "return data", run: func(r *InstructionResult, _ sysvar.Rent) error {
		if !bytes.Equal(r.ReturnData, data) {
			return fmt.Errorf("expected return data %x, got %x", data, r.ReturnData)
		}
		return nil
	}}
}

// AccountCheck builds a Check against one resulting account. Only the
// properties that were set are compared.
type AccountCheck struct {
	key        solana.PublicKey
	lamports   *uint64
	data       []byte
	owner      *solana.PublicKey
	executable *bool
	space      *int
	rentExempt bool
	closed     bool
}

func CheckAccount(key solana.PublicKey) *AccountCheck {
	return &AccountCheck{key: key}
}

func (c *AccountCheck) Lamports(lamports uint64) *AccountCheck {
	c.lamports = &lamports
	return c
}

func (c *AccountCheck) Data(data []byte) *AccountCheck {
	c.data = bytes.Clone(data)
	if c.data == nil {
		c.data = []byte{}
	}
	return c
}

func (c *AccountCheck) Owner(owner solana.PublicKey) *AccountCheck {
	c.owner = &owner
	return c
}

func (c *AccountCheck) Executable(executable bool) *AccountCheck {
	c.executable = &executable
	return c
}

func (c *AccountCheck) Space(space int) *AccountCheck {
	c.space = &space
	return c
}

func (c *AccountCheck) RentExempt() *AccountCheck {
	c.rentExempt = true
	return c
}

// Closed expects the zero account: no lamports, no data, system owned.
func (c *AccountCheck) Closed() *AccountCheck {
	c.closed = true
	return c
}

func (c *AccountCheck) Build() Check {
	ac := *c
	return Check{desc: fmt.Sprintf("account %s", ac.key), run: ac.run}
}

func (c *AccountCheck) run(r *InstructionResult, rent sysvar.Rent) error {
	acct, ok := r.Account(c.key)
	if !ok {
		return fmt.Errorf("account %s not in result", c.key)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("account %s: "+format, append([]any{c.key}, args...)...))
	}

	if c.lamports != nil && acct.Lamports != *c.lamports {
		fail("expected %d lamports, got %d", *c.lamports, acct.Lamports)
	}
	if c.data != nil && !bytes.Equal(acct.Data, c.data) {
		fail("expected data %x, got %x", c.data, acct.Data)
	}
	if c.owner != nil && acct.Owner != *c.owner {
		fail("expected owner %s, got %s", *c.owner, acct.Owner)
	}
	if c.executable != nil && acct.Executable != *c.executable {
		fail("expected executable %t, got %t", *c.executable, acct.Executable)
	}
	if c.space != nil && len(acct.Data) != *c.space {
		fail("expected %d bytes of data, got %d", *c.space, len(acct.Data))
	}
	if c.rentExempt {
		if minBalance := max(1, rent.MinimumBalance(uint64(len(acct.Data)))); acct.Lamports < minBalance {
			fail("not rent exempt: %d lamports, need %d", acct.Lamports, minBalance)
		}
	}
	if c.closed && (acct.Lamports != 0 || len(acct.Data) != 0 || acct.Owner != sealevel.SystemProgramAddr) {
		fail("expected closed, got %d lamports, %d bytes owned by %s", acct.Lamports, len(acct.Data), acct.Owner)
	}
	return errors.Join(errs...)
}

// RunChecks runs every check against r and joins the failures.
func RunChecks(r *InstructionResult, rent sysvar.Rent, checks ...Check) error {
	var errs []error
	for _, check := range checks {
		if err := check.run(r, rent); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunChecks uses the harness rent for rent exemption checks.
func (h *Harness) RunChecks(r *InstructionResult, checks ...Check) error {
	return RunChecks(r, h.sysvars.Rent(), checks...)
}

// Validate fails t unless every check passes, using the default rent.
func Validate(t testing.TB, r *InstructionResult, checks ...Check) {
	t.Helper()
	require.NoError(t, RunChecks(r, sysvar.DefaultRent(), checks...))
}

func (h *Harness) Validate(t testing.TB, r *InstructionResult, checks ...Check) {
	t.Helper()
	require.NoError(t, h.RunChecks(r, checks...))
}
