// Package compile builds an in-memory Ruleset — chain name to ordered
// kernel-filter command lines — from parsed rule IR and VM inventory.
// Compile is a pure function of its inputs: repeated invocation over the
// same IR and inventory produces a byte-identical Ruleset.
package compile

// Ruleset is a mapping from chain name (≤28 chars) to an ordered sequence
// of fully-formed kernel-filter command lines. Chains are created exactly
// once; rule order within a chain is preserved and semantically
// significant.
type Ruleset struct {
	Chains map[string][]string
	// Order is chain creation order, used when the reconciler needs a
	// deterministic iteration order (e.g. for the restore script header).
	Order []string
}

// NewRuleset returns an empty Ruleset.
func NewRuleset() *Ruleset {
	return &Ruleset{Chains: make(map[string][]string)}
}

// EnsureChain creates the named chain if it doesn't already exist. Chain
// creation is idempotent: calling it again for an existing chain is a
// no-op.
func (rs *Ruleset) EnsureChain(name string) {
	if _, ok := rs.Chains[name]; !ok {
		rs.Chains[name] = nil
		rs.Order = append(rs.Order, name)
	}
}

// Append adds a command line to the end of the named chain, creating the
// chain first if necessary.
func (rs *Ruleset) Append(chain, line string) {
	rs.EnsureChain(chain)
	rs.Chains[chain] = append(rs.Chains[chain], line)
}

// AppendAll appends each line in order.
func (rs *Ruleset) AppendAll(chain string, lines []string) {
	for _, l := range lines {
		rs.Append(chain, l)
	}
}

// Prepend inserts a command line at the top of the named chain, creating
// the chain first if necessary.
func (rs *Ruleset) Prepend(chain, line string) {
	rs.EnsureChain(chain)
	rs.Chains[chain] = append([]string{line}, rs.Chains[chain]...)
}

// ChainNames returns the set of chain names in creation order.
func (rs *Ruleset) ChainNames() []string {
	return rs.Order
}

// MaxChainNameLength is the kernel filter's hard limit on chain names.
// Group names are validated against this same limit (duplicated as
// rules.maxChainNameLength, since rules cannot import compile) at parse
// time: a group name is rejected when "GROUP-<name>-OUT" would exceed
// it, before any chain name is ever built from one; bridge and tap
// names are bounded by the kernel interface-name limit and so can never
// reach it.
const MaxChainNameLength = 28
