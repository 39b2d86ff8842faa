package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"pvefw.dev/core/internal/hostinventory"
	"pvefw.dev/core/internal/kernelfilter"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/reconcile"
)

// RunCompile parses and compiles the current rule files, then runs a
// reconcile dry-run (diff against kernel state, never applying), and
// prints "detected changes" or "no changes". With verbose set, it also
// renders a unified diff of the changed chains (see renderUnifiedDiff).
func RunCompile(verbose bool) error {
	log := logging.Default().WithComponent("cmd")

	runner := kernelfilter.NewExecRunner("filter")
	inv := hostinventory.New()

	ctx := context.Background()
	rs, warnings, err := LoadAndCompile(ctx, inv)
	for _, w := range warnings {
		log.Warn(w.String())
	}
	if err != nil {
		return err
	}

	plan, err := reconcile.Plan(ctx, runner, rs.Order, rs.Chains)
	if err != nil {
		return err
	}

	if !reconcile.HasChanges(plan) {
		fmt.Println("no changes")
		return nil
	}
	fmt.Println("detected changes")

	if verbose {
		diffText, err := renderUnifiedDiff(plan)
		if err != nil {
			return err
		}
		fmt.Print(diffText)
	}
	return nil
}

// renderUnifiedDiff builds a before/after rendering of every changed
// chain and feeds it through go-difflib, mirroring the teacher's own
// RunDiff. The "compiled" side carries each changed chain's new command
// lines; the "kernel" side carries only a header line for each chain
// being updated or deleted, not the lines the kernel currently holds.
func renderUnifiedDiff(plan []reconcile.ChainStatus) (string, error) {
	sorted := append([]reconcile.ChainStatus{}, plan...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var before, after strings.Builder
	for _, s := range sorted {
		if s.Action == reconcile.ActionExists {
			continue
		}
		fmt.Fprintf(&after, "# chain %s (%s)\n", s.Name, s.Action)
		for _, l := range s.Lines {
			after.WriteString(l)
			after.WriteString("\n")
		}
		if s.Action == reconcile.ActionUpdate || s.Action == reconcile.ActionDelete {
			fmt.Fprintf(&before, "# chain %s\n", s.Name)
		}
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before.String()),
		B:        difflib.SplitLines(after.String()),
		FromFile: "kernel",
		ToFile:   "compiled",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
