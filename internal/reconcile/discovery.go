package reconcile

import (
	"bufio"
	"bytes"
	"strings"
)

// DiscoveredChain is one managed chain as read back from the kernel's
// current filter table.
type DiscoveredChain struct {
	Name      string
	Lines     []string // the chain's "-A ..." lines, in order, canary included
	Signature string   // from the canary comment, or UnknownSignature
}

// ParseSave parses iptables-save format and returns every PVEFW-managed
// chain found in the *filter table, keyed by chain name. Chains outside
// the filter table, or not matching the managed-name patterns, are
// ignored — this adapter never touches chains it doesn't own.
func ParseSave(saveOutput []byte) map[string]*DiscoveredChain {
	chains := make(map[string]*DiscoveredChain)

	inFilterTable := false
	scanner := bufio.NewScanner(bytes.NewReader(saveOutput))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "*"):
			inFilterTable = trimmed == "*filter"
			continue
		case trimmed == "COMMIT":
			inFilterTable = false
			continue
		}
		if !inFilterTable || trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			name := chainDeclName(trimmed)
			if isManagedChainName(name) {
				chains[name] = &DiscoveredChain{Name: name, Signature: UnknownSignature}
			}
			continue
		}

		if strings.HasPrefix(trimmed, "-A ") {
			name := appendTargetChain(trimmed)
			dc, ok := chains[name]
			if !ok {
				if !isManagedChainName(name) {
					continue
				}
				dc = &DiscoveredChain{Name: name, Signature: UnknownSignature}
				chains[name] = dc
			}
			dc.Lines = append(dc.Lines, trimmed)
		}
	}

	for _, dc := range chains {
		if sig, ok := extractCanarySignature(dc.Lines); ok {
			dc.Signature = sig
		}
	}
	return chains
}

// chainDeclName extracts the chain name from a ":NAME POLICY [..]" line.
func chainDeclName(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[0], ":")
}

// appendTargetChain extracts the chain name from a "-A NAME ..." line.
func appendTargetChain(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
