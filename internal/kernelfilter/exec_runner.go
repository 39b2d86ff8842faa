package kernelfilter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"pvefw.dev/core/internal/logging"
)

// execRunner drives the real iptables toolchain via child processes.
// Contains no policy: every argv it runs is supplied by the caller.
type execRunner struct {
	saveBin    string
	checkBin   string
	restoreBin string
	table      string
}

// NewExecRunner returns a Runner backed by the host's iptables tools,
// operating on the given table (normally "filter").
func NewExecRunner(table string) Runner {
	return &execRunner{
		saveBin:    "iptables-save",
		checkBin:   "iptables",
		restoreBin: "iptables-restore",
		table:      table,
	}
}

func (r *execRunner) Save(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.saveBin, "-t", r.table)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s -t %s: %w", r.saveBin, r.table, err)
	}
	return out, nil
}

func (r *execRunner) RuleExists(ctx context.Context, spec []string) (bool, error) {
	args := append([]string{"-t", r.table, "-C"}, spec...)
	cmd := exec.CommandContext(ctx, r.checkBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// iptables -C exits 1 when the rule is simply absent; any other
		// exit code (2+, malformed spec) is a real error.
		if exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("%s -C: %s: %w", r.checkBin, stderr.String(), err)
	}
	return false, fmt.Errorf("%s -C: %w", r.checkBin, err)
}

func (r *execRunner) Restore(ctx context.Context, script []byte) error {
	cmd := exec.CommandContext(ctx, r.restoreBin, "-n")
	cmd.Stdin = bytes.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logging.Default().WithComponent("kernelfilter").Error("restore failed",
			"stderr", stderr.String(), "error", err)
		return fmt.Errorf("%s -n: %s: %w", r.restoreBin, stderr.String(), err)
	}
	return nil
}
