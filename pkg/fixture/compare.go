package fixture

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/harness"
)

// Mismatch is one difference between a fixture's expected output and an
// execution.
type Mismatch struct {
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", m.Field, m.Expected, m.Actual)
}

// Checks selects the parts of an output Compare looks at.
type Checks uint8

const (
	CompareProgramResult Checks = 1 << iota
	CompareComputeUnits
	CompareReturnData
	CompareAccounts

	CompareAll = CompareProgramResult | CompareComputeUnits | CompareReturnData | CompareAccounts
)

// Without returns c with the given checks cleared.
func (c Checks) Without(checks Checks) Checks {
	return c &^ checks
}

// Compare checks result against expected. Only the accounts listed in
// expected.ResultingAccounts are compared. With no checks given every part
// is compared; several are combined.
func Compare(expected Output, result *harness.InstructionResult, checks ...Checks) ([]Mismatch, error) {
	selected := CompareAll
	if len(checks) > 0 {
		selected = 0
		for _, c := range checks {
			selected |= c
		}
	}

	var out []Mismatch
	add := func(field string, expected, actual any) {
		out = append(out, Mismatch{Field: field, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)})
	}

	if selected&CompareProgramResult != 0 {
		if got := resultString(result.ProgramResult); got != expected.ProgramResult {
			add("program_result", quoteResult(expected.ProgramResult), quoteResult(got))
		}
	}
	if selected&CompareComputeUnits != 0 && result.ComputeUnitsConsumed != expected.ComputeUnits {
		add("compute_units", expected.ComputeUnits, result.ComputeUnitsConsumed)
	}
	if selected&CompareReturnData != 0 {
		returnData, err := decodeData("return_data", expected.ReturnData)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(returnData, result.ReturnData) {
			add("return_data", expected.ReturnData, base64.StdEncoding.EncodeToString(result.ReturnData))
		}
	}
	if selected&CompareAccounts == 0 {
		return out, nil
	}

	want, err := keyedAccounts(expected.ResultingAccounts)
	if err != nil {
		return nil, err
	}
	for _, w := range want {
		got, ok := result.Account(w.Key)
		if !ok {
			add("account "+w.Key.String(), "present", "missing")
			continue
		}
		if accounts.Hash(w.Key, &w.Account) == accounts.Hash(w.Key, &got) {
			continue
		}
		out = append(out, accountMismatches(w, accounts.KeyedAccount{Key: w.Key, Account: got})...)
	}
	return out, nil
}

func accountMismatches(want, got accounts.KeyedAccount) []Mismatch {
	prefix := "account " + want.Key.String() + " "
	var out []Mismatch
	add := func(field, expected, actual string) {
		out = append(out, Mismatch{Field: prefix + field, Expected: expected, Actual: actual})
	}
	if want.Account.Lamports != got.Account.Lamports {
		add("lamports", fmt.Sprint(want.Account.Lamports), fmt.Sprint(got.Account.Lamports))
	}
	if want.Account.Owner != got.Account.Owner {
		add("owner", want.Account.Owner.String(), got.Account.Owner.String())
	}
	if want.Account.Executable != got.Account.Executable {
		add("executable", fmt.Sprint(want.Account.Executable), fmt.Sprint(got.Account.Executable))
	}
	if w, g := want.Account.Data, got.Account.Data; len(w) != len(g) {
		add("data", fmt.Sprintf("%d bytes", len(w)), fmt.Sprintf("%d bytes", len(g)))
	} else if i := firstDifference(w, g); i >= 0 {
		add(fmt.Sprintf("data[%d]", i), fmt.Sprintf("%#02x", w[i]), fmt.Sprintf("%#02x", g[i]))
	}
	if len(out) == 0 {
		add("rent_epoch", fmt.Sprint(want.Account.RentEpoch), fmt.Sprint(got.Account.RentEpoch))
	}
	return out
}

func quoteResult(s string) string {
	if s == "" {
		return "success"
	}
	return s
}

func firstDifference(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
