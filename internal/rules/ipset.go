package rules

import (
	"fmt"
	"strings"
)

// ValidateIPSetReferences checks every "+<name>" token appearing in a
// rule's source/dest field against the loaded ipset definitions. Rule
// files and the ipset file are parsed independently, so this pass runs
// after all of them have loaded. An unresolved reference is the same
// recoverable, per-line failure class as an unresolved service name.
func ValidateIPSetReferences(rs []Rule, ipsets map[string]NetworkSet) []ParseWarning {
	var warnings []ParseWarning
	for _, r := range rs {
		for _, tok := range strings.Split(r.Source, ",") {
			if w := checkIPSetToken(tok, ipsets, r); w != nil {
				warnings = append(warnings, *w)
			}
		}
		for _, tok := range strings.Split(r.Dest, ",") {
			if w := checkIPSetToken(tok, ipsets, r); w != nil {
				warnings = append(warnings, *w)
			}
		}
	}
	return warnings
}

func checkIPSetToken(tok string, ipsets map[string]NetworkSet, r Rule) *ParseWarning {
	if !strings.HasPrefix(tok, "+") {
		return nil
	}
	name := tok[1:]
	if _, ok := ipsets[name]; !ok {
		return &ParseWarning{r.SourceFile, r.SourceLine, fmt.Sprintf("unresolved ipset reference %q", tok)}
	}
	return nil
}

// ExpandIPSetTokens replaces every "+<name>" token in a comma-separated
// address list with its member CIDRs (each "!"-negated member becomes a
// "!"-prefixed CIDR token in the expansion), for use by the compiler when
// building the iprange/CIDR matcher a referencing rule would have used
// directly.
func ExpandIPSetTokens(raw string, ipsets map[string]NetworkSet) string {
	if raw == "" {
		return raw
	}
	tokens := strings.Split(raw, ",")
	var out []string
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "+") {
			out = append(out, tok)
			continue
		}
		set, ok := ipsets[tok[1:]]
		if !ok {
			out = append(out, tok)
			continue
		}
		for _, e := range set.Entries {
			if e.Except {
				out = append(out, "!"+e.CIDR)
			} else {
				out = append(out, e.CIDR)
			}
		}
	}
	return strings.Join(out, ",")
}
