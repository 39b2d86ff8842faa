package cmd

import (
	"context"
	"fmt"
	"time"

	"pvefw.dev/core/internal/daemoncfg"
	"pvefw.dev/core/internal/hostinventory"
	"pvefw.dev/core/internal/kernelfilter"
	"pvefw.dev/core/internal/lockfile"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/reconcile"
	"pvefw.dev/core/internal/sysctl"
)

// RunStart acquires the advisory lock, runs exactly one
// compile->diff->apply->verify cycle, and prints the outcome.
// Continuous operation belongs to the out-of-scope service wrapper;
// this binary's "start" always runs one cycle and returns. If
// metricsAddr is non-empty, a /metrics endpoint is served for the
// duration of the cycle so an external scraper can catch the values
// this invocation just recorded.
func RunStart(debug bool, metricsAddr string) error {
	if debug {
		logging.Default().SetLevel(logging.LevelDebug)
	}
	log := logging.Default().WithComponent("cmd")

	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
	}

	cfg := daemoncfg.Default()
	runner := kernelfilter.NewExecRunner("filter")
	inv := hostinventory.New()

	ctx := context.Background()
	var result *reconcile.CycleResult
	err := lockfile.WithLock(ctx, cfg.LockPath, cfg.LockTimeoutDuration(), func(ctx context.Context) error {
		rs, warnings, err := LoadAndCompile(ctx, inv)
		for _, w := range warnings {
			log.Warn(w.String())
		}
		if err != nil {
			return err
		}
		if err := sysctl.EnsureBridgeNFCall(); err != nil {
			return fmt.Errorf("cmd: enabling bridge-nf-call: %w", err)
		}
		result, err = reconcile.Cycle(ctx, runner, rs.Order, rs.Chains)
		return err
	})
	if err != nil {
		return err
	}

	if result.Applied {
		fmt.Println("detected changes, applied")
	} else {
		fmt.Println("no changes")
	}
	return nil
}
