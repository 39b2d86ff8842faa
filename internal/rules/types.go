// Package rules implements the rule DSL's data model, macro registry, and
// parser: tokenizing and validating VM, host, group, and ipset rule files
// into the intermediate representation the compiler consumes.
package rules

import "fmt"

// Terminal actions a rule line may carry directly (as opposed to a macro
// invocation or a GROUP-<name> reference, both resolved at parse time).
const (
	ActionAccept        = "ACCEPT"
	ActionDrop          = "DROP"
	ActionReject        = "REJECT"
	ActionReturn        = "RETURN"
	ActionSetAcceptMark = "PVEFW-SET-ACCEPT-MARK"
	GroupActionPrefix   = "GROUP-"
	unsetToken          = "-"
)

// Rule is the canonical intermediate form for one firewall rule line.
// Fields follow the Rule field table: all optional except Action.
type Rule struct {
	Action string // ACCEPT | DROP | REJECT | RETURN | PVEFW-SET-ACCEPT-MARK | GROUP-<name>
	Iface  string // net0..net31; empty for group rules
	Source string // comma-separated IP/CIDR tokens, or "" if unset
	Dest   string
	Proto  string
	DPort  string // comma-separated port tokens (number, service name, or lo:hi range)
	SPort  string

	// Cached cardinalities, derived at parse time. A range token
	// contributes 2, a single token contributes 1 — matching the
	// original source's accounting, which is what makes the multiport
	// matcher threshold (nb>1) land on the right side of rules like
	// "80,443,8080:8090" (nb=4, not 3).
	NBSource int
	NBDest   int
	NBDPort  int
	NBSPort  int

	// Log is the supplemented optional trailing "log" qualifier: when
	// set, the compiler emits a LOG line ahead of this rule's
	// terminator, independent of the chain's default-policy logging.
	Log bool

	SourceFile string
	SourceLine int
}

// Clone returns a deep copy of the rule. The compiler must clone before
// rewriting ACCEPT to RETURN in OUT chains: the parser produces Rule
// values that may be reused across directions (e.g. bidirectional macro
// expansion), and mutating in place would corrupt an earlier IN-direction
// pass that shares the same underlying Rule.
func (r Rule) Clone() Rule {
	return r
}

// IsGroupReference reports whether the rule's action names a security
// group, returning the bare group name.
func (r Rule) IsGroupReference() (name string, ok bool) {
	if len(r.Action) > len(GroupActionPrefix) && r.Action[:len(GroupActionPrefix)] == GroupActionPrefix {
		return r.Action[len(GroupActionPrefix):], true
	}
	return "", false
}

// ParseWarning is a recoverable per-line diagnostic: a malformed line, or
// a malformed address/port/macro/service reference within an otherwise
// well-formed line. The offending line is skipped; prior lines remain
// valid.
type ParseWarning struct {
	File    string
	Line    int
	Message string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
}

// VMOptions holds the [options] section of a per-VM rule file, plus the
// supplemented log-level overrides.
type VMOptions struct {
	Enable      bool
	PolicyIn    string // ACCEPT | DROP | REJECT, default DROP
	PolicyOut   string // ACCEPT | DROP | REJECT, default ACCEPT ("same" resolves to PolicyIn)
	LogLevelIn  int    // default 4
	LogLevelOut int    // default 4
}

// DefaultVMOptions returns the options in effect when a VM file omits
// [options] entirely, or omits individual keys within it.
func DefaultVMOptions() VMOptions {
	return VMOptions{
		Enable:      true,
		PolicyIn:    ActionDrop,
		PolicyOut:   ActionAccept,
		LogLevelIn:  4,
		LogLevelOut: 4,
	}
}

// VMFile is the IR for /etc/pve/firewall/<vmid>.fw.
type VMFile struct {
	VMID    int
	In      []Rule
	Out     []Rule
	Options VMOptions
}

// HostFile is the IR for /etc/pve/local/host.fw.
type HostFile struct {
	In  []Rule
	Out []Rule
}

// GroupRules is one named security group's directional rule lists.
type GroupRules struct {
	In  []Rule
	Out []Rule
}

// GroupsFile is the IR for /etc/pve/firewall/groups.fw.
type GroupsFile struct {
	Groups map[string]GroupRules
}

// NetworkSetEntry is one line of a supplemented ipset file: an address or
// CIDR token, optionally negated with a leading "!" ("except this
// address").
type NetworkSetEntry struct {
	CIDR   string
	Except bool
}

// NetworkSet is one named, supplemented ipset definition, referenced from
// a rule's source/dest field as "+<name>".
type NetworkSet struct {
	Name    string
	Entries []NetworkSetEntry
}

// IPSetFile is the IR for a supplemented ipset rule file: a set of named
// address lists keyed by set name.
type IPSetFile struct {
	Sets map[string]NetworkSet
}
