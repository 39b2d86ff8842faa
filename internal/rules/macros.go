package rules

import "strings"

// Sentinel tokens a macro template field may carry instead of a literal
// value. Expansion substitutes these from the invoking rule.
const (
	SentinelParam  = "PARAM"  // copy the same-named field from the parsed rule
	SentinelSource = "SOURCE" // copy the parsed rule's source field
	SentinelDest   = "DEST"   // copy the parsed rule's dest field
)

// MacroTemplate is one partially-specified rule produced by a macro.
// Expanding a macro invocation yields one Rule per template. A template's
// Proto/DPort/SPort/Source/Dest may each be a literal value, empty
// (unset), or one of the sentinel tokens above.
type MacroTemplate struct {
	Proto  string
	DPort  string
	SPort  string
	Source string
	Dest   string
}

// macroRegistry maps a macro name (canonical case) to its templates.
// Static table, built once at init and never mutated thereafter — safe to
// share across cycles, same as the services/protocols tables.
var macroRegistry = map[string][]MacroTemplate{
	"SSH":        {{Proto: "tcp", DPort: "22"}},
	"HTTP":       {{Proto: "tcp", DPort: "80"}},
	"HTTPS":      {{Proto: "tcp", DPort: "443"}},
	"Web":        {{Proto: "tcp", DPort: "80"}, {Proto: "tcp", DPort: "443"}},
	"DNS":        {{Proto: "udp", DPort: "53"}, {Proto: "tcp", DPort: "53"}},
	"FTP":        {{Proto: "tcp", DPort: "21"}},
	"Telnet":     {{Proto: "tcp", DPort: "23"}},
	"SMTP":       {{Proto: "tcp", DPort: "25"}},
	"SMTPS":      {{Proto: "tcp", DPort: "465"}},
	"Submission": {{Proto: "tcp", DPort: "587"}},
	"POP3":       {{Proto: "tcp", DPort: "110"}},
	"POP3S":      {{Proto: "tcp", DPort: "995"}},
	"IMAP":       {{Proto: "tcp", DPort: "143"}},
	"IMAPS":      {{Proto: "tcp", DPort: "993"}},
	"NTP":        {{Proto: "udp", DPort: "123"}},
	"SNMP":       {{Proto: "udp", DPort: "161"}},
	"Syslog":     {{Proto: "udp", DPort: "514"}, {Proto: "tcp", DPort: "514"}},
	"LDAP":       {{Proto: "tcp", DPort: "389"}},
	"LDAPS":      {{Proto: "tcp", DPort: "636"}},
	"Kerberos":   {{Proto: "tcp", DPort: "88"}, {Proto: "udp", DPort: "88"}},
	"RDP":        {{Proto: "tcp", DPort: "3389"}},
	"VNC":        {{Proto: "tcp", DPort: "5900:5905"}},
	"CVS":        {{Proto: "tcp", DPort: "2401"}},
	"Git":        {{Proto: "tcp", DPort: "9418"}},
	"Rsync":      {{Proto: "tcp", DPort: "873"}},
	"IRC":        {{Proto: "tcp", DPort: "6667"}},
	"MySQL":      {{Proto: "tcp", DPort: "3306"}},
	"PostgreSQL": {{Proto: "tcp", DPort: "5432"}},
	"Redis":      {{Proto: "tcp", DPort: "6379"}},
	"SMBswat":    {{Proto: "tcp", DPort: "901"}},
	"SMB":        {{Proto: "tcp", DPort: "445"}, {Proto: "udp", DPort: "137:139"}, {Proto: "tcp", DPort: "137:139"}},
	"NFS":        {{Proto: "tcp", DPort: "2049"}, {Proto: "udp", DPort: "2049"}},
	"Ping":       {{Proto: "icmp"}},
	"Trcrt":      {{Proto: "icmp"}, {Proto: "udp", DPort: "33434:33523"}},
	"IPsec":      {{Proto: "udp", DPort: "500"}, {Proto: "udp", DPort: "4500"}, {Proto: "esp"}},
	"IPsecah":    {{Proto: "ah"}},
	"OpenVPN":    {{Proto: "udp", DPort: "1194"}},
	"WireGuard":  {{Proto: "udp", DPort: "51820"}},
	"PVE":        {{Proto: "tcp", DPort: "8006"}, {Proto: "tcp", DPort: "3128"}},
	"SPICEproxy": {{Proto: "tcp", DPort: "3128"}},
	"Bacula":     {{Proto: "tcp", DPort: "9101:9103"}},
	"BitTorrent": {{Proto: "tcp", DPort: "6881:6889"}, {Proto: "udp", DPort: "6881"}},
	"mDNS":       {{Proto: "udp", DPort: "5353"}},
	"Auth":       {{Proto: "tcp", DPort: "113"}},
	"Finger":     {{Proto: "tcp", DPort: "79"}},
	"Jetdirect":  {{Proto: "tcp", DPort: "9100"}},
	"GRE":        {{Proto: "gre"}},
	"HKP":        {{Proto: "tcp", DPort: "11371"}},
	"Webmin":     {{Proto: "tcp", DPort: "10000"}},
	"Squid":      {{Proto: "tcp", DPort: "3128"}},
	"ICPV2":      {{Proto: "udp", DPort: "3130"}},
	"Memcached":  {{Proto: "tcp", DPort: "11211"}, {Proto: "udp", DPort: "11211"}},
	"AFS":        {{Proto: "tcp", DPort: "7000:7009"}, {Proto: "udp", DPort: "7000:7009"}},
	"Amanda":     {{Proto: "udp", DPort: "10080"}},
	"Citrix":     {{Proto: "tcp", DPort: "1494"}, {Proto: "udp", DPort: "1604"}},
	"DAAP":       {{Proto: "tcp", DPort: "3689"}},
	"DHCPfwd":    {{Proto: "udp", DPort: "67:68", Source: SentinelSource, Dest: SentinelDest}},
	"DHCPv6":     {{Proto: "udp", DPort: "546:547"}},
	"Distcc":     {{Proto: "tcp", DPort: "3632"}},
	"HiD":        {{Proto: "udp", DPort: "7777"}},
	"ISPManager": {{Proto: "tcp", DPort: "1500"}},
	"L2TP":       {{Proto: "udp", DPort: "1701"}},
	"PCA":        {{Proto: "tcp", DPort: "5631"}, {Proto: "udp", DPort: "5632"}},
	"PCAnywhere": {{Proto: "tcp", DPort: "5631"}, {Proto: "udp", DPort: "5632"}},
	"PPtP":       {{Proto: "gre"}, {Proto: "tcp", DPort: "1723"}},
	"Razor":      {{Proto: "tcp", DPort: "2703"}},
	"SANE":       {{Proto: "tcp", DPort: "6566"}},
	"SSDP":       {{Proto: "udp", DPort: "1900"}},
	"SVN":        {{Proto: "tcp", DPort: "3690"}},
	"TFTP":       {{Proto: "udp", DPort: "69"}},
	"Time":       {{Proto: "tcp", DPort: "37"}, {Proto: "udp", DPort: "37"}},
	"WebIRC":     {{Proto: "tcp", DPort: "9090"}},
	"WebMail":    {{Proto: "tcp", DPort: "80"}, {Proto: "tcp", DPort: "443"}},
	"Whois":      {{Proto: "tcp", DPort: "43"}},
	"Zope":       {{Proto: "tcp", DPort: "8080"}},
}

// macroDisplayNames maps a lowercased macro name to its canonical,
// preferred-case spelling, so diagnostics can echo the form the registry
// was authored with even though lookups are case-insensitive.
var macroDisplayNames = buildMacroDisplayNames()

func buildMacroDisplayNames() map[string]string {
	m := make(map[string]string, len(macroRegistry))
	for name := range macroRegistry {
		m[strings.ToLower(name)] = name
	}
	return m
}

// LookupMacro resolves a macro name case-insensitively, returning its
// templates and canonical display name.
func LookupMacro(name string) (templates []MacroTemplate, canonical string, ok bool) {
	canonical, ok = macroDisplayNames[strings.ToLower(name)]
	if !ok {
		return nil, "", false
	}
	return macroRegistry[canonical], canonical, true
}

// resolveSentinel substitutes a template field value against the
// invoking rule: SOURCE/DEST copy the named field verbatim, PARAM copies
// whichever field of the parsed rule shares the template field's role,
// and anything else is a literal (including "", meaning unset).
func resolveSentinel(templateValue, ownField, source, dest string) string {
	switch templateValue {
	case SentinelSource:
		return source
	case SentinelDest:
		return dest
	case SentinelParam:
		return ownField
	default:
		return templateValue
	}
}

// ExpandMacro expands a macro invocation against the parsed rule's
// source/dest/proto/dport/sport fields, producing one concrete Rule per
// template, each carrying innerAction as its terminal action.
func ExpandMacro(templates []MacroTemplate, invoking Rule, innerAction string) []Rule {
	out := make([]Rule, 0, len(templates))
	for _, tmpl := range templates {
		r := Rule{
			Action:     innerAction,
			Iface:      invoking.Iface,
			Source:     resolveSentinel(tmpl.Source, invoking.Source, invoking.Source, invoking.Dest),
			Dest:       resolveSentinel(tmpl.Dest, invoking.Dest, invoking.Source, invoking.Dest),
			Proto:      resolveSentinel(tmpl.Proto, invoking.Proto, invoking.Source, invoking.Dest),
			DPort:      resolveSentinel(tmpl.DPort, invoking.DPort, invoking.Source, invoking.Dest),
			SPort:      resolveSentinel(tmpl.SPort, invoking.SPort, invoking.Source, invoking.Dest),
			Log:        invoking.Log,
			SourceFile: invoking.SourceFile,
			SourceLine: invoking.SourceLine,
		}
		r.NBSource = countPortOrAddrTokens(r.Source)
		r.NBDest = countPortOrAddrTokens(r.Dest)
		r.NBDPort = countPortTokens(r.DPort)
		r.NBSPort = countPortTokens(r.SPort)
		out = append(out, r)
	}
	return out
}
