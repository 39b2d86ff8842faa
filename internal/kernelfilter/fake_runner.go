package kernelfilter

import (
	"context"
	"strings"
)

// FakeRunner is an in-memory Runner for tests: Save returns canned
// save-format text, RuleExists answers from a preloaded set of known
// specs, and Restore records the applied script and replays it into the
// canned save output so a caller can chain several reconciliation
// cycles against the same fake.
type FakeRunner struct {
	SaveOutput    []byte
	ExistingSpecs map[string]bool
	RestoreCalls  [][]byte
	RestoreErr    error
	SaveErr       error
	RuleExistsErr error
}

// NewFakeRunner returns a FakeRunner with empty canned state.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{ExistingSpecs: make(map[string]bool)}
}

func (f *FakeRunner) Save(ctx context.Context) ([]byte, error) {
	if f.SaveErr != nil {
		return nil, f.SaveErr
	}
	return f.SaveOutput, nil
}

func (f *FakeRunner) RuleExists(ctx context.Context, spec []string) (bool, error) {
	if f.RuleExistsErr != nil {
		return false, f.RuleExistsErr
	}
	return f.ExistingSpecs[strings.Join(spec, " ")], nil
}

func (f *FakeRunner) Restore(ctx context.Context, script []byte) error {
	f.RestoreCalls = append(f.RestoreCalls, script)
	if f.RestoreErr != nil {
		return f.RestoreErr
	}
	f.SaveOutput = script
	return nil
}

// MarkSpecExists records that a rule spec (joined with single spaces,
// matching how RuleExists receives it) should report as already present.
func (f *FakeRunner) MarkSpecExists(spec ...string) {
	f.ExistingSpecs[strings.Join(spec, " ")] = true
}
