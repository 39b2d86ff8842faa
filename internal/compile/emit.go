package compile

import (
	"fmt"
	"strings"

	"pvefw.dev/core/internal/rules"
)

// target describes where a rule's terminator should point, decoupled
// from the rule's own Action so callers can rewrite it (ACCEPT->RETURN,
// GROUP-<g>->GROUP-<g>-<direction>) without mutating the Rule.
type target struct {
	name string
	goTo bool // true emits "-g", false emits "-j"
}

func jumpTo(name string) target { return target{name: name} }
func gotoTo(name string) target { return target{name: name, goTo: true} }

// generateRuleLines builds the command line(s) for one rule dispatched
// into chain, following the matcher order mandated by spec.md §4.4:
// iprange-src|-s, iprange-dst|-d, -p, multiport|--dport, multiport|--sport,
// then the terminator. A rule carrying the supplemented "log" qualifier
// additionally emits a LOG line immediately before the terminator, using
// the same matchers. A rule whose source or dest names an ipset that
// ipsets does not define produces no lines: the unresolved reference has
// already been reported as a per-line warning.
func generateRuleLines(chain string, r rules.Rule, t target, ipsets map[string]rules.NetworkSet) []string {
	for _, addrs := range []string{r.Source, r.Dest} {
		for _, tok := range strings.Split(addrs, ",") {
			if _, ok := ipsets[strings.TrimPrefix(tok, "+")]; strings.HasPrefix(tok, "+") && !ok {
				return nil
			}
		}
	}
	matchers := buildMatchers(r, ipsets)

	var lines []string
	if r.Log {
		lines = append(lines, fmt.Sprintf("-A %s %s-j LOG --log-prefix \"%s-log: \" --log-level 4", chain, matchers, chain))
	}
	verb := "-j"
	if t.goTo {
		verb = "-g"
	}
	lines = append(lines, fmt.Sprintf("-A %s %s%s %s", chain, matchers, verb, t.name))
	return lines
}

// buildMatchers renders the matcher clause (everything between the chain
// name and the terminator), always ending in a trailing space when
// non-empty so callers can concatenate directly.
func buildMatchers(r rules.Rule, ipsets map[string]rules.NetworkSet) string {
	var b strings.Builder

	source := rules.ExpandIPSetTokens(r.Source, ipsets)
	dest := rules.ExpandIPSetTokens(r.Dest, ipsets)

	if source != "" {
		if rules.CountAddrTokens(source) > 1 {
			fmt.Fprintf(&b, "--match iprange --src-range %s ", source)
		} else {
			fmt.Fprintf(&b, "-s %s ", source)
		}
	}
	if dest != "" {
		if rules.CountAddrTokens(dest) > 1 {
			fmt.Fprintf(&b, "--match iprange --dst-range %s ", dest)
		} else {
			fmt.Fprintf(&b, "-d %s ", dest)
		}
	}
	if r.Proto != "" {
		fmt.Fprintf(&b, "-p %s ", r.Proto)
	}
	if r.DPort != "" {
		if r.NBDPort > 1 {
			fmt.Fprintf(&b, "--match multiport --dport %s ", r.DPort)
		} else {
			fmt.Fprintf(&b, "--dport %s ", r.DPort)
		}
	}
	if r.SPort != "" {
		if r.NBSPort > 1 {
			fmt.Fprintf(&b, "--match multiport --sport %s ", r.SPort)
		} else {
			fmt.Fprintf(&b, "--sport %s ", r.SPort)
		}
	}
	return b.String()
}
