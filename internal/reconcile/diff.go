package reconcile

import "sort"

// Action is a chain's reconciliation verb.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionExists Action = "exists"
	ActionDelete Action = "delete"
)

// ChainStatus is the diff result for one chain.
type ChainStatus struct {
	Name   string
	Sig    string
	Action Action
	Lines  []string // the new lines to install; empty for delete
}

// Diff compares a freshly compiled ruleset (chain -> ordered lines, in
// compiled.Order) against the chains currently discovered in the
// kernel, and returns the per-chain action table described in
// spec.md §4.5.
func Diff(compiledOrder []string, compiledChains map[string][]string, discovered map[string]*DiscoveredChain) []ChainStatus {
	var statuses []ChainStatus
	seen := make(map[string]bool, len(compiledOrder))

	for _, name := range compiledOrder {
		seen[name] = true
		lines := compiledChains[name]
		newSig := Signature(lines)

		old, existedBefore := discovered[name]
		switch {
		case !existedBefore:
			statuses = append(statuses, ChainStatus{Name: name, Sig: newSig, Action: ActionCreate, Lines: lines})
		case old.Signature == newSig:
			statuses = append(statuses, ChainStatus{Name: name, Sig: newSig, Action: ActionExists, Lines: lines})
		default:
			statuses = append(statuses, ChainStatus{Name: name, Sig: newSig, Action: ActionUpdate, Lines: lines})
		}
	}

	removed := make([]string, 0)
	for name := range discovered {
		if !seen[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	for _, name := range removed {
		statuses = append(statuses, ChainStatus{Name: name, Action: ActionDelete})
	}

	return statuses
}

// HasChanges reports whether any status in the plan requires mutating
// the kernel filter.
func HasChanges(statuses []ChainStatus) bool {
	for _, s := range statuses {
		if s.Action != ActionExists {
			return true
		}
	}
	return false
}
