package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"pvefw.dev/core/internal/hostinventory"
	"pvefw.dev/core/internal/kernelfilter"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/reconcile"
)

// statusReport is the JSON shape "status" prints: {status, changes}.
type statusReport struct {
	Status  string `json:"status"`
	Changes bool   `json:"changes"`
}

// RunStatus parses, compiles, and runs a reconcile dry-run, printing
// the result as JSON. "active" means PVEFW-INPUT is already present in
// the kernel filter; "stopped" means it isn't; "unknown" means
// discovery itself failed.
func RunStatus() error {
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

	saveOut, err := runner.Save(ctx)
	if err != nil {
		return printStatus(statusReport{Status: "unknown", Changes: false})
	}
	discovered := reconcile.ParseSave(saveOut)
	plan := reconcile.Diff(rs.Order, rs.Chains, discovered)

	status := "stopped"
	if _, ok := discovered["PVEFW-INPUT"]; ok {
		status = "active"
	}

	return printStatus(statusReport{Status: status, Changes: reconcile.HasChanges(plan)})
}

func printStatus(r statusReport) error {
	out, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
