package rules

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"pvefw.dev/core/internal/sysnames"
)

// sectionHeaderRe matches [in], [out], [options], [in:<group>], [out:<group>].
var sectionHeaderRe = regexp.MustCompile(`^\[([a-z]+)(?::(\S+))?\]$`)

// macroInvocationRe matches "<Macro>(ACCEPT|DROP|REJECT)".
var macroInvocationRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\((ACCEPT|DROP|REJECT)\)$`)

// groupReferenceRe matches "GROUP-<name>". The original source used
// "GROUP-(:?\S+)", almost certainly a typo for the non-capturing group
// "(?:\S+)" — as written, "(:?" is a plain capturing group whose content
// happens to still be the full name, so the effective behavior (capture
// the group name) is unchanged. Preserved here as an ordinary capture.
var groupReferenceRe = regexp.MustCompile(`^GROUP-(\S+)$`)

// maxChainNameLength mirrors compile.MaxChainNameLength: the rules
// package cannot import compile (compile imports rules), so the kernel
// filter's 28-character chain name limit is duplicated here. A group
// name is rejected at parse time if its longest derived chain name,
// "GROUP-<name>-OUT", would exceed it.
const maxChainNameLength = 28

const maxGroupNameLength = maxChainNameLength - len("GROUP-") - len("-OUT")

var bareTerminalActions = map[string]bool{
	ActionAccept: true,
	ActionDrop:   true,
	ActionReject: true,
	ActionReturn: true,
}

type fileKind int

const (
	kindVM fileKind = iota
	kindHost
	kindGroup
)

// ParseVMFile parses a per-VM rule file (sections [in], [out], [options]).
func ParseVMFile(path string, dir *sysnames.Directory) (*VMFile, []ParseWarning, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	vf := &VMFile{Options: DefaultVMOptions()}
	var warnings []ParseWarning

	section := ""
	for lineno, raw := range lines {
		line, ok := stripCommentAndTrim(raw)
		if !ok {
			continue
		}
		if hdr := sectionHeaderRe.FindStringSubmatch(line); hdr != nil {
			switch hdr[1] {
			case "in", "out", "options":
				section = hdr[1]
			default:
				section = ""
				warnings = append(warnings, ParseWarning{path, lineno + 1, fmt.Sprintf("unrecognized section header %q", line)})
			}
			continue
		}

		switch section {
		case "in":
			rs, w := parseRuleLine(path, lineno+1, line, kindVM, dir)
			warnings = append(warnings, w...)
			vf.In = append(vf.In, rs...)
		case "out":
			rs, w := parseRuleLine(path, lineno+1, line, kindVM, dir)
			warnings = append(warnings, w...)
			vf.Out = append(vf.Out, rs...)
		case "options":
			w := parseOptionLine(path, lineno+1, line, &vf.Options)
			warnings = append(warnings, w...)
		default:
			warnings = append(warnings, ParseWarning{path, lineno + 1, "line outside any recognized section"})
		}
	}
	return vf, warnings, nil
}

// ParseHostFile parses the host rule file (sections [in], [out]).
func ParseHostFile(path string, dir *sysnames.Directory) (*HostFile, []ParseWarning, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	hf := &HostFile{}
	var warnings []ParseWarning

	section := ""
	for lineno, raw := range lines {
		line, ok := stripCommentAndTrim(raw)
		if !ok {
			continue
		}
		if hdr := sectionHeaderRe.FindStringSubmatch(line); hdr != nil {
			switch hdr[1] {
			case "in", "out":
				section = hdr[1]
			default:
				section = ""
				warnings = append(warnings, ParseWarning{path, lineno + 1, fmt.Sprintf("unrecognized section header %q", line)})
			}
			continue
		}

		switch section {
		case "in":
			rs, w := parseRuleLine(path, lineno+1, line, kindHost, dir)
			warnings = append(warnings, w...)
			hf.In = append(hf.In, rs...)
		case "out":
			rs, w := parseRuleLine(path, lineno+1, line, kindHost, dir)
			warnings = append(warnings, w...)
			hf.Out = append(hf.Out, rs...)
		default:
			warnings = append(warnings, ParseWarning{path, lineno + 1, "line outside any recognized section"})
		}
	}
	return hf, warnings, nil
}

// ParseGroupsFile parses the security-groups file (sections
// [in:<group>], [out:<group>]).
func ParseGroupsFile(path string, dir *sysnames.Directory) (*GroupsFile, []ParseWarning, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	gf := &GroupsFile{Groups: make(map[string]GroupRules)}
	var warnings []ParseWarning

	section := ""
	group := ""
	for lineno, raw := range lines {
		line, ok := stripCommentAndTrim(raw)
		if !ok {
			continue
		}
		if hdr := sectionHeaderRe.FindStringSubmatch(line); hdr != nil {
			switch hdr[1] {
			case "in", "out":
				if hdr[2] == "" {
					section = ""
					warnings = append(warnings, ParseWarning{path, lineno + 1, "group section header missing group name"})
					continue
				}
				if len(hdr[2]) > maxGroupNameLength {
					section = ""
					warnings = append(warnings, ParseWarning{path, lineno + 1, fmt.Sprintf("group name %q is too long: GROUP-%s-OUT would exceed the %d-character chain name limit, skipping section", hdr[2], hdr[2], maxChainNameLength)})
					continue
				}
				section = hdr[1]
				group = hdr[2]
			default:
				section = ""
				warnings = append(warnings, ParseWarning{path, lineno + 1, fmt.Sprintf("unrecognized section header %q", line)})
			}
			continue
		}

		switch section {
		case "in", "out":
			rs, w := parseRuleLine(path, lineno+1, line, kindGroup, dir)
			warnings = append(warnings, w...)
			gr := gf.Groups[group]
			if section == "in" {
				gr.In = append(gr.In, rs...)
			} else {
				gr.Out = append(gr.Out, rs...)
			}
			gf.Groups[group] = gr
		default:
			warnings = append(warnings, ParseWarning{path, lineno + 1, "line outside any recognized section"})
		}
	}
	return gf, warnings, nil
}

// ParseIPSetFile parses the supplemented ipset file shape: one or more
// "[ipset <name>]" sections, each followed by address/CIDR lines with an
// optional leading "!" negation.
func ParseIPSetFile(path string) (*IPSetFile, []ParseWarning, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	ipf := &IPSetFile{Sets: make(map[string]NetworkSet)}
	ipsetHeaderRe := regexp.MustCompile(`^\[ipset\s+(\S+)\]$`)

	var warnings []ParseWarning
	current := ""
	for lineno, raw := range lines {
		line, ok := stripCommentAndTrim(raw)
		if !ok {
			continue
		}
		if hdr := ipsetHeaderRe.FindStringSubmatch(line); hdr != nil {
			current = hdr[1]
			if _, exists := ipf.Sets[current]; !exists {
				ipf.Sets[current] = NetworkSet{Name: current}
			}
			continue
		}
		if current == "" {
			warnings = append(warnings, ParseWarning{path, lineno + 1, "line outside any [ipset <name>] section"})
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 1 {
			warnings = append(warnings, ParseWarning{path, lineno + 1, "ipset entry must be a single address or CIDR token"})
			continue
		}
		tok := fields[0]
		except := strings.HasPrefix(tok, "!")
		if except {
			tok = tok[1:]
		}
		if !looksLikeAddrToken(tok) {
			warnings = append(warnings, ParseWarning{path, lineno + 1, fmt.Sprintf("invalid address/CIDR token %q", tok)})
			continue
		}
		ns := ipf.Sets[current]
		ns.Entries = append(ns.Entries, NetworkSetEntry{CIDR: tok, Except: except})
		ipf.Sets[current] = ns
	}
	return ipf, warnings, nil
}

// parseRuleLine parses one rule line, possibly expanding a macro into
// multiple Rules. Returns zero rules and a warning on any recoverable
// failure.
func parseRuleLine(file string, lineno int, line string, kind fileKind, dir *sysnames.Directory) ([]Rule, []ParseWarning) {
	fields := strings.Fields(line)

	hasIface := kind != kindGroup
	minFields := 6
	maxFields := 7 // + optional trailing "log"
	if hasIface {
		minFields = 7
		maxFields = 8
	}
	if len(fields) < minFields || len(fields) > maxFields {
		return nil, []ParseWarning{{file, lineno, fmt.Sprintf("expected %d or %d fields, got %d", minFields, maxFields, len(fields))}}
	}

	logQualifier := false
	if len(fields) == maxFields {
		if fields[len(fields)-1] != "log" {
			return nil, []ParseWarning{{file, lineno, fmt.Sprintf("unexpected trailing token %q", fields[len(fields)-1])}}
		}
		logQualifier = true
		fields = fields[:len(fields)-1]
	}

	idx := 0
	actionTok := fields[idx]
	idx++
	iface := ""
	if hasIface {
		iface = valueOrUnset(fields[idx])
		idx++
		if iface != "" && !validIfaceToken(iface) {
			return nil, []ParseWarning{{file, lineno, fmt.Sprintf("invalid interface token %q", iface)}}
		}
	}
	source := valueOrUnset(fields[idx])
	idx++
	dest := valueOrUnset(fields[idx])
	idx++
	proto := valueOrUnset(fields[idx])
	idx++
	dport := valueOrUnset(fields[idx])
	idx++
	sport := valueOrUnset(fields[idx])

	for _, addrs := range []string{source, dest} {
		if addrs == "" {
			continue
		}
		for _, tok := range strings.Split(addrs, ",") {
			if len(tok) > 1 && strings.HasPrefix(tok, "+") {
				continue // ipset reference, resolved after all files load
			}
			if _, _, err := net.ParseCIDR(tok); err != nil && net.ParseIP(tok) == nil {
				return nil, []ParseWarning{{file, lineno, fmt.Sprintf("invalid address token %q", tok)}}
			}
		}
	}
	if proto != "" {
		if _, ok := dir.ResolveProtocol(proto); !ok {
			return nil, []ParseWarning{{file, lineno, fmt.Sprintf("unknown protocol %q", proto)}}
		}
	}
	if dport != "" {
		if err := validatePortList(dport, dir); err != nil {
			return nil, []ParseWarning{{file, lineno, err.Error()}}
		}
	}
	if sport != "" {
		if err := validatePortList(sport, dir); err != nil {
			return nil, []ParseWarning{{file, lineno, err.Error()}}
		}
	}

	base := Rule{
		Iface:      iface,
		Source:     source,
		Dest:       dest,
		Proto:      proto,
		DPort:      dport,
		SPort:      sport,
		Log:        logQualifier,
		SourceFile: file,
		SourceLine: lineno,
	}
	base.NBSource = countPortOrAddrTokens(source)
	base.NBDest = countPortOrAddrTokens(dest)
	base.NBDPort = countPortTokens(dport)
	base.NBSPort = countPortTokens(sport)

	// Action grammar: bare terminal, GROUP-<name> (VM/host only), or a
	// macro invocation.
	if bareTerminalActions[actionTok] {
		base.Action = actionTok
		return []Rule{base}, nil
	}
	if m := groupReferenceRe.FindStringSubmatch(actionTok); m != nil {
		if kind == kindGroup {
			return nil, []ParseWarning{{file, lineno, "GROUP- reference not allowed inside a group file"}}
		}
		if len(m[1]) > maxGroupNameLength {
			return nil, []ParseWarning{{file, lineno, fmt.Sprintf("group reference %q is too long: GROUP-%s-OUT would exceed the %d-character chain name limit, skipping rule", m[1], m[1], maxChainNameLength)}}
		}
		base.Action = actionTok
		return []Rule{base}, nil
	}
	if m := macroInvocationRe.FindStringSubmatch(actionTok); m != nil {
		macroName, innerAction := m[1], m[2]
		templates, _, ok := LookupMacro(macroName)
		if !ok {
			return nil, []ParseWarning{{file, lineno, fmt.Sprintf("unknown macro %q", macroName)}}
		}
		return ExpandMacro(templates, base, innerAction), nil
	}

	return nil, []ParseWarning{{file, lineno, fmt.Sprintf("invalid action %q", actionTok)}}
}

// parseOptionLine parses one [options] line of a VM file.
func parseOptionLine(file string, lineno int, line string, opts *VMOptions) []ParseWarning {
	key, val, ok := splitOption(line)
	if !ok {
		return []ParseWarning{{file, lineno, fmt.Sprintf("malformed option line %q", line)}}
	}
	switch key {
	case "enable":
		switch val {
		case "0":
			opts.Enable = false
		case "1":
			opts.Enable = true
		default:
			return []ParseWarning{{file, lineno, fmt.Sprintf("invalid enable value %q", val)}}
		}
	case "policy-in":
		if !bareTerminalActions[val] || val == ActionReturn {
			return []ParseWarning{{file, lineno, fmt.Sprintf("invalid policy-in value %q", val)}}
		}
		opts.PolicyIn = val
	case "policy-out":
		if val == "same" {
			opts.PolicyOut = opts.PolicyIn
			return nil
		}
		if !bareTerminalActions[val] || val == ActionReturn {
			return []ParseWarning{{file, lineno, fmt.Sprintf("invalid policy-out value %q", val)}}
		}
		opts.PolicyOut = val
	case "log_level_in":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 7 {
			return []ParseWarning{{file, lineno, fmt.Sprintf("invalid log_level_in value %q", val)}}
		}
		opts.LogLevelIn = n
	case "log_level_out":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 7 {
			return []ParseWarning{{file, lineno, fmt.Sprintf("invalid log_level_out value %q", val)}}
		}
		opts.LogLevelOut = n
	default:
		return []ParseWarning{{file, lineno, fmt.Sprintf("unknown option %q", key)}}
	}
	return nil
}

func splitOption(line string) (key, val string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	val = strings.TrimSpace(line[i+1:])
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

func valueOrUnset(tok string) string {
	if tok == unsetToken {
		return ""
	}
	return tok
}

var ifaceTokenRe = regexp.MustCompile(`^net(3[01]|[0-2]?[0-9])$`)

func validIfaceToken(tok string) bool {
	return ifaceTokenRe.MatchString(tok)
}

var addrTokenRe = regexp.MustCompile(`^\+?[a-zA-Z0-9:.\/_-]+$`)

func looksLikeAddrToken(tok string) bool {
	return addrTokenRe.MatchString(tok)
}

// validatePortList validates every comma-separated port token: each must
// be a decimal port number, a resolvable service name, or a "lo:hi"
// range with lo<=hi and both in range.
func validatePortList(raw string, dir *sysnames.Directory) error {
	for _, tok := range strings.Split(raw, ",") {
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			loStr, hiStr := tok[:i], tok[i+1:]
			lo, err1 := strconv.Atoi(loStr)
			hi, err2 := strconv.Atoi(hiStr)
			if err1 != nil || err2 != nil {
				return fmt.Errorf("invalid port range %q", tok)
			}
			if !validPortNumber(lo) || !validPortNumber(hi) {
				return fmt.Errorf("port range %q out of bounds", tok)
			}
			if lo > hi {
				return fmt.Errorf("invalid port range %q: lo > hi", tok)
			}
			continue
		}
		if _, ok := dir.ResolvePort(tok); !ok {
			return fmt.Errorf("unresolvable port token %q", tok)
		}
		if n, err := strconv.Atoi(tok); err == nil && !validPortNumber(n) {
			return fmt.Errorf("port %q out of bounds", tok)
		}
	}
	return nil
}

// validPortNumber implements the boundary behavior directly: port 0 is
// rejected, 65535 accepted, 65536 rejected. The original source checked
// "pon < 0 && pon > 65535" — an impossible conjunction that could never
// reject anything; it was clearly meant to be "||". Reimplemented with
// the intended disjunction, expressed as a single inclusive range.
func validPortNumber(n int) bool {
	return n >= 1 && n <= 65535
}

// countPortTokens counts a comma-separated port-list's cardinality for
// multiport-matcher purposes: a range token counts as 2, a single value
// counts as 1.
func countPortTokens(raw string) int {
	if raw == "" {
		return 0
	}
	n := 0
	for _, tok := range strings.Split(raw, ",") {
		if strings.Contains(tok, ":") {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// countPortOrAddrTokens counts a comma-separated address list's
// cardinality for iprange-matcher purposes.
func countPortOrAddrTokens(raw string) int {
	if raw == "" {
		return 0
	}
	return len(strings.Split(raw, ","))
}

// CountAddrTokens exposes countPortOrAddrTokens to the compiler, which
// must recompute a field's cardinality after ipset expansion: a single
// "+set" token (NB=1 at parse time) can expand to several CIDRs, and the
// iprange-vs-literal matcher choice has to follow the expanded list, not
// the unexpanded one.
func CountAddrTokens(raw string) int {
	return countPortOrAddrTokens(raw)
}

func stripCommentAndTrim(raw string) (string, bool) {
	line := raw
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return line, true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
