package rules

import "strings"

// Render renders a Rule back to its rule-line textual form. Only
// meaningful for rules as the parser actually produces them one-at-a-time
// (bare terminal actions and GROUP-<name> references) — a macro
// invocation expands into several distinct Rules, none of which round-
// trips back to the macro syntax, so Render never re-synthesizes one.
func Render(r Rule, hasIface bool) string {
	var b strings.Builder
	b.WriteString(r.Action)
	if hasIface {
		b.WriteByte(' ')
		b.WriteString(fieldOrUnset(r.Iface))
	}
	b.WriteByte(' ')
	b.WriteString(fieldOrUnset(r.Source))
	b.WriteByte(' ')
	b.WriteString(fieldOrUnset(r.Dest))
	b.WriteByte(' ')
	b.WriteString(fieldOrUnset(r.Proto))
	b.WriteByte(' ')
	b.WriteString(fieldOrUnset(r.DPort))
	b.WriteByte(' ')
	b.WriteString(fieldOrUnset(r.SPort))
	if r.Log {
		b.WriteString(" log")
	}
	return b.String()
}

func fieldOrUnset(v string) string {
	if v == "" {
		return unsetToken
	}
	return v
}
