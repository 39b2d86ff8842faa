package reconcile

import (
	"fmt"
	"strings"
)

// BuiltinJump is one built-in-chain dispatch the reconciler must ensure
// exists before (or as part of) applying the script: INPUT -> PVEFW-INPUT,
// OUTPUT -> PVEFW-OUTPUT, FORWARD -> PVEFW-FORWARD.
type BuiltinJump struct {
	Chain  string
	Target string
}

// RequiredBuiltinJumps are the three splices the reconciler maintains
// from the kernel's built-in chains into the PVEFW top-level chains.
func RequiredBuiltinJumps() []BuiltinJump {
	return []BuiltinJump{
		{Chain: "INPUT", Target: "PVEFW-INPUT"},
		{Chain: "OUTPUT", Target: "PVEFW-OUTPUT"},
		{Chain: "FORWARD", Target: "PVEFW-FORWARD"},
	}
}

// Spec renders the argv iptables -C/-I would use for this jump.
func (j BuiltinJump) Spec() []string {
	return []string{j.Chain, "-j", j.Target}
}

// preservedTopLevelChains are never removed by a delete action, even
// when they appear with no other changes: they are the splice targets
// the built-in chains jump into.
var preservedTopLevelChains = map[string]bool{
	"PVEFW-INPUT":   true,
	"PVEFW-OUTPUT":  true,
	"PVEFW-FORWARD": true,
}

// BuildRestoreScript renders the single atomic *filter script described
// in spec.md §4.5: chain declarations for every create, missing
// built-in jumps, flush+rewrite+canary for every update/create, and
// flush+delete for every removed chain.
func BuildRestoreScript(statuses []ChainStatus, missingJumps []BuiltinJump) []byte {
	var b strings.Builder
	b.WriteString("*filter\n")

	for _, s := range statuses {
		if s.Action == ActionCreate {
			fmt.Fprintf(&b, ":%s - [0:0]\n", s.Name)
		}
	}

	for _, j := range missingJumps {
		fmt.Fprintf(&b, "-I %s -j %s\n", j.Chain, j.Target)
	}

	for _, s := range statuses {
		if s.Action != ActionCreate && s.Action != ActionUpdate {
			continue
		}
		fmt.Fprintf(&b, "-F %s\n", s.Name)
		for _, line := range s.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString(CanaryLine(s.Name, s.Sig))
		b.WriteString("\n")
	}

	for _, s := range statuses {
		if s.Action == ActionDelete {
			fmt.Fprintf(&b, "-F %s\n", s.Name)
		}
	}
	for _, s := range statuses {
		if s.Action == ActionDelete && !preservedTopLevelChains[s.Name] {
			fmt.Fprintf(&b, "-X %s\n", s.Name)
		}
	}

	b.WriteString("COMMIT\n")
	return []byte(b.String())
}
