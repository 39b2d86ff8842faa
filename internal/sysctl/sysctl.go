// Package sysctl reads and writes /proc/sys knobs, grounded on the
// teacher's own dotted-path-to-/proc/sys convention
// (internal/network.RealSystemController).
package sysctl

import (
	"fmt"
	"os"
	"strings"
)

// bridgeNFCallIPTables and bridgeNFCallIP6Tables are the two knobs that
// must read "1" before the compiled FORWARD chains can see any bridged
// VM traffic at all — without them, netfilter never sees packets
// crossing a Linux bridge in the first place, making every chain this
// module installs inert.
const (
	bridgeNFCallIPTables  = "net.bridge.bridge-nf-call-iptables"
	bridgeNFCallIP6Tables = "net.bridge.bridge-nf-call-ip6tables"
)

// Read reads a sysctl value. Dotted notation is rewritten to its
// /proc/sys path; a path already starting with "/" is used as-is.
func Read(path string) (string, error) {
	data, err := os.ReadFile(toProcPath(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Write sets a sysctl value.
func Write(path, value string) error {
	return os.WriteFile(toProcPath(path), []byte(value), 0644)
}

func toProcPath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/proc/sys/" + strings.ReplaceAll(path, ".", "/")
}

// EnsureBridgeNFCall idempotently writes "1" to both
// bridge-nf-call-iptables and bridge-nf-call-ip6tables, skipping the
// write for a knob that already reads "1". Must run before the first
// apply (spec.md §6): the bridge module only hands packets to netfilter
// at all once this is set, so applying the compiled ruleset without it
// leaves every FORWARD-chain decision unreachable by bridged traffic.
func EnsureBridgeNFCall() error {
	for _, knob := range []string{bridgeNFCallIPTables, bridgeNFCallIP6Tables} {
		cur, err := Read(knob)
		if err == nil && cur == "1" {
			continue
		}
		if err := Write(knob, "1"); err != nil {
			return fmt.Errorf("sysctl: enable %s: %w", knob, err)
		}
	}
	return nil
}
