// Package daemon implements the minimal foreground lifecycle that
// drives repeated compile->reconcile cycles: a single-threaded tick
// loop, SIGHUP requesting an immediate next cycle, and
// SIGINT/TERM/QUIT clearing the managed chains before exit. Full
// daemonization (PID files, forking, the service wrapper) stays out of
// scope per spec.md §1; this package exists only to exercise the lock,
// the cycle, and the teardown path end to end.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pvefw.dev/core/internal/clock"
	"pvefw.dev/core/internal/daemoncfg"
	"pvefw.dev/core/internal/kernelfilter"
	"pvefw.dev/core/internal/lockfile"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/reconcile"
)

// CycleFunc runs one parse->compile->reconcile pass and returns its
// result. Supplied by whoever constructs the Daemon, so this package
// never needs to know about rule files or VM inventory.
type CycleFunc func(ctx context.Context) (*reconcile.CycleResult, error)

// Daemon runs CycleFunc under the advisory lock on a tick, honoring
// SIGHUP (run now) and SIGINT/TERM/QUIT (tear down and exit).
type Daemon struct {
	Cfg    daemoncfg.Config
	Runner kernelfilter.Runner
	Cycle  CycleFunc
}

// Run blocks until ctx is canceled or a termination signal arrives,
// ticking at Cfg.TickIntervalDuration and running immediately whenever
// SIGHUP is received.
func (d *Daemon) Run(ctx context.Context) error {
	log := logging.Default().WithComponent("daemon")

	if err := clock.EnsureSaneTime(); err != nil {
		log.Warn("system clock looked unreasonable at startup and could not be corrected", "error", err)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigterm)

	ticker := time.NewTicker(d.Cfg.TickIntervalDuration())
	defer ticker.Stop()

	d.runOnce(ctx, log)

	for {
		select {
		case <-ctx.Done():
			return d.teardown(context.Background(), log)
		case sig := <-sigterm:
			log.Info("received termination signal, tearing down", "signal", sig.String())
			return d.teardown(context.Background(), log)
		case <-sighup:
			log.Info("received SIGHUP, running immediate cycle")
			d.runOnce(ctx, log)
		case <-ticker.C:
			d.runOnce(ctx, log)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, log *logging.Logger) {
	err := lockfile.WithLock(ctx, d.Cfg.LockPath, d.Cfg.LockTimeoutDuration(), func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("cycle panicked, aborting this cycle", "panic", r)
				err = fmt.Errorf("daemon: cycle panic: %v", r)
			}
		}()
		_, err = d.Cycle(ctx)
		return err
	})
	if err != nil {
		log.Error("cycle failed", "error", err)
		return
	}
	if err := clock.SaveAnchor(); err != nil {
		log.Warn("failed to persist clock anchor", "error", err)
	}
}

// teardown clears every PVEFW-managed chain from the kernel filter
// before the process exits, per spec.md §5's cancellation contract.
func (d *Daemon) teardown(ctx context.Context, log *logging.Logger) error {
	save, err := d.Runner.Save(ctx)
	if err != nil {
		log.Error("teardown: save failed", "error", err)
		return err
	}
	discovered := reconcile.ParseSave(save)
	if len(discovered) == 0 {
		return nil
	}

	statuses := make([]reconcile.ChainStatus, 0, len(discovered))
	for name := range discovered {
		statuses = append(statuses, reconcile.ChainStatus{Name: name, Action: reconcile.ActionDelete})
	}
	script := reconcile.BuildRestoreScript(statuses, nil)
	if err := d.Runner.Restore(ctx, script); err != nil {
		log.Error("teardown: restore failed", "error", err)
		return err
	}
	log.Info("cleared managed chains", "count", len(discovered))
	return nil
}
