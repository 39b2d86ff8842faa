// Package reconcile is the content-addressed diff/apply engine: it
// compares a freshly compiled Ruleset against what the kernel filter
// currently has, computes the minimal create/update/exists/delete plan,
// and installs it atomically via the kernel-filter adapter.
package reconcile

import (
	"crypto/sha1" //nolint:gosec // canary signature, not a security boundary
	"encoding/base64"
	"regexp"
	"strings"
)

// UnknownSignature is the signature recorded for a managed chain that
// lacks a canary comment (e.g. created out-of-band by an operator).
const UnknownSignature = "unknown"

// CanaryPrefix precedes the signature inside a chain's trailing comment
// rule: -A <chain> -m comment --comment "PVESIG:<sig>".
const CanaryPrefix = "PVESIG:"

// Signature computes the canary signature for a chain's command lines:
// a base64-encoded SHA-1 over the concatenation of the lines, one
// trailing newline appended per line.
func Signature(lines []string) string {
	h := sha1.New() //nolint:gosec
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte("\n"))
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// CanaryLine renders the trailing comment rule for chain carrying sig.
func CanaryLine(chain, sig string) string {
	return "-A " + chain + " -m comment --comment \"" + CanaryPrefix + sig + "\""
}

var canaryCommentRe = regexp.MustCompile(`-m comment --comment "` + regexp.QuoteMeta(CanaryPrefix) + `([^"]+)"`)

// extractCanarySignature pulls the signature out of a chain's last
// canary rule, if present. Returns ("", false) if no canary is found.
func extractCanarySignature(lines []string) (string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if m := canaryCommentRe.FindStringSubmatch(lines[i]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// isManagedChainName reports whether name matches one of the patterns
// the reconciler considers "ours": PVEFW-<anything>, tap<d>i<d>-(IN|OUT),
// vmbr<d>-(FW|IN|OUT), GROUP-<name>-(IN|OUT).
func isManagedChainName(name string) bool {
	switch {
	case strings.HasPrefix(name, "PVEFW-"):
		return true
	case tapChainRe.MatchString(name):
		return true
	case bridgeChainRe.MatchString(name):
		return true
	case groupChainRe.MatchString(name):
		return true
	}
	return false
}

var (
	tapChainRe    = regexp.MustCompile(`^tap\d+i\d+-(IN|OUT)$`)
	bridgeChainRe = regexp.MustCompile(`^vmbr\d+-(FW|IN|OUT)$`)
	groupChainRe  = regexp.MustCompile(`^GROUP-\S+-(IN|OUT)$`)
)
