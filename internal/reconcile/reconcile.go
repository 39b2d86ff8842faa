package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pvefw.dev/core/internal/clock"
	"pvefw.dev/core/internal/kernelfilter"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/metrics"
)

// ErrApplyFailed is returned when iptables-restore exits non-zero after
// every retry attempt is exhausted.
var ErrApplyFailed = errors.New("reconcile: apply failed")

// ErrVerifyFailed is returned when, after a successful apply, a
// re-discovery still finds a chain whose action is not "exists".
var ErrVerifyFailed = errors.New("reconcile: post-apply verification failed")

// CycleResult summarizes one compile->diff->apply->verify pass.
type CycleResult struct {
	CycleID string
	Plan    []ChainStatus
	Applied bool
}

// Plan runs discovery and diff only — parse+compile+reconcile-dry-run,
// used by the "compile" and "status" CLI subcommands, which never
// mutate the kernel filter.
func Plan(ctx context.Context, runner kernelfilter.Runner, compiledOrder []string, compiledChains map[string][]string) ([]ChainStatus, error) {
	saveOut, err := runner.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: discovery: %w", err)
	}
	discovered := ParseSave(saveOut)
	return Diff(compiledOrder, compiledChains, discovered), nil
}

// Cycle runs one full parse-already-done->diff->apply->verify pass: if
// the plan has no changes, it returns without touching the kernel. If
// it does, it builds the atomic restore script, applies it (with
// retry), and re-discovers to confirm every chain now reads back as
// "exists".
func Cycle(ctx context.Context, runner kernelfilter.Runner, compiledOrder []string, compiledChains map[string][]string) (*CycleResult, error) {
	cycleID := uuid.New().String()
	log := logging.Default().WithComponent("reconciler").With("cycle_id", cycleID)
	reg := metrics.Default()

	start := clock.Now()
	defer func() { reg.CycleDuration.Observe(clock.Since(start).Seconds()) }()

	plan, err := Plan(ctx, runner, compiledOrder, compiledChains)
	if err != nil {
		reg.CyclesTotal.WithLabelValues("discovery_error").Inc()
		return nil, err
	}
	discoveredChains := 0
	for _, s := range plan {
		reg.ChainActionsTotal.WithLabelValues(string(s.Action)).Inc()
		if s.Action != ActionCreate {
			discoveredChains++
		}
	}
	reg.RulesetChains.Set(float64(discoveredChains))

	if !HasChanges(plan) {
		log.Info("no changes")
		reg.CyclesTotal.WithLabelValues("ok").Inc()
		return &CycleResult{CycleID: cycleID, Plan: plan, Applied: false}, nil
	}

	var missingJumps []BuiltinJump
	for _, j := range RequiredBuiltinJumps() {
		exists, err := runner.RuleExists(ctx, j.Spec())
		if err != nil {
			return nil, fmt.Errorf("reconcile: checking builtin jump %s: %w", j.Chain, err)
		}
		if !exists {
			missingJumps = append(missingJumps, j)
		}
	}

	script := BuildRestoreScript(plan, missingJumps)
	applyErr := retryApply(ctx, defaultRetryConfig(), func() error {
		return runner.Restore(ctx, script)
	})
	if applyErr != nil {
		reg.ApplyErrorsTotal.Inc()
		reg.CyclesTotal.WithLabelValues("apply_error").Inc()
		log.Error("apply failed", "error", applyErr)
		return nil, fmt.Errorf("%w: %v", ErrApplyFailed, applyErr)
	}

	verifyPlan, err := Plan(ctx, runner, compiledOrder, compiledChains)
	if err != nil {
		reg.CyclesTotal.WithLabelValues("verify_error").Inc()
		return nil, fmt.Errorf("reconcile: post-apply verification: %w", err)
	}
	if HasChanges(verifyPlan) {
		reg.CyclesTotal.WithLabelValues("verify_error").Inc()
		log.Error("post-apply verification found mismatched chains")
		return nil, ErrVerifyFailed
	}

	log.Info("applied changes", "chains", len(plan))
	reg.CyclesTotal.WithLabelValues("ok").Inc()
	return &CycleResult{CycleID: cycleID, Plan: plan, Applied: true}, nil
}
