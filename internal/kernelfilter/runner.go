// Package kernelfilter is the thin adapter over the kernel's legacy
// iptables packet filter: save, single-rule existence checks, and
// atomic bulk restore. It contains no policy — callers decide what to
// save, check, or restore.
package kernelfilter

import "context"

// Runner is the narrow interface the reconciler depends on. A real
// Runner shells out to iptables-save/-C/-restore; a fake one (used in
// tests) holds canned in-memory state.
type Runner interface {
	// Save returns the current filter table in iptables-save format.
	Save(ctx context.Context) ([]byte, error)
	// RuleExists reports whether a rule matching spec is already
	// present, via "iptables -C <spec...>" (exit 0 means present).
	RuleExists(ctx context.Context, spec []string) (bool, error)
	// Restore atomically loads script via "iptables-restore -n",
	// replacing only the tables/chains the script mentions.
	Restore(ctx context.Context, script []byte) error
}
