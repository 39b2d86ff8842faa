// Package cmd implements the pvefw-core CLI surface: start, stop,
// compile, and status, dispatched by main.go the way the teacher
// dispatches on os.Args[1] with a per-subcommand flag.NewFlagSet.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pvefw.dev/core/internal/compile"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/metrics"
	"pvefw.dev/core/internal/rules"
	"pvefw.dev/core/internal/sysnames"
)

// Well-known rule-file locations per the external-interfaces contract.
// Distinct from the daemon's own ambient settings (internal/daemoncfg),
// which live at brand.GetConfigDir(). Vars rather than consts so tests
// can point them at a temp directory.
var (
	FirewallDir = "/etc/pve/firewall"
	GroupsPath  = "/etc/pve/firewall/groups.fw"
	HostPath    = "/etc/pve/local/host.fw"
	IPSetPath   = "/etc/pve/firewall/ipset.fw"
)

// LoadAndCompile reads every rule file the system currently has, asks
// inv for the VM inventory, and compiles the result into a Ruleset.
// Per-line parse failures are collected as warnings rather than
// aborting the run, per spec.md §7's recoverable-error classes.
func LoadAndCompile(ctx context.Context, inv compile.Inventory) (*compile.Ruleset, []rules.ParseWarning, error) {
	dir := sysnames.Default()
	log := logging.Default().WithComponent("cmd")
	var warnings []rules.ParseWarning

	ipsets := map[string]rules.NetworkSet{}
	if _, err := os.Stat(IPSetPath); err == nil {
		isf, warns, parseErr := rules.ParseIPSetFile(IPSetPath)
		warnings = append(warnings, warns...)
		recordParseWarnings("ipset", warns)
		if parseErr != nil {
			log.Warn("ipset file unreadable, proceeding without ipsets", "path", IPSetPath, "error", parseErr)
		} else {
			ipsets = isf.Sets
		}
	}

	vmFiles := make(map[int]*rules.VMFile)
	matches, _ := filepath.Glob(filepath.Join(FirewallDir, "*.fw"))
	for _, path := range matches {
		base := filepath.Base(path)
		if base == "groups.fw" || base == "ipset.fw" {
			continue
		}
		vmid, err := strconv.Atoi(strings.TrimSuffix(base, ".fw"))
		if err != nil {
			log.Warn("skipping rule file with non-numeric name", "path", path)
			continue
		}
		vf, warns, parseErr := rules.ParseVMFile(path, dir)
		warnings = append(warnings, warns...)
		recordParseWarnings("vm", warns)
		if parseErr != nil {
			// The VM's rule file is skipped with a warning; any of its
			// interfaces present in the inventory still get tap chains,
			// built from the default options with no user rules.
			log.Warn("VM rule file unreadable, skipping", "vmid", vmid, "error", parseErr)
			continue
		}
		vmFiles[vmid] = vf
	}

	var hostFile *rules.HostFile
	if _, err := os.Stat(HostPath); err == nil {
		hf, warns, parseErr := rules.ParseHostFile(HostPath, dir)
		warnings = append(warnings, warns...)
		recordParseWarnings("host", warns)
		if parseErr != nil {
			log.Warn("host rule file unreadable, host firewall disabled", "error", parseErr)
		} else {
			hostFile = hf
		}
	}

	var groups *rules.GroupsFile
	if _, err := os.Stat(GroupsPath); err == nil {
		gf, warns, parseErr := rules.ParseGroupsFile(GroupsPath, dir)
		warnings = append(warnings, warns...)
		recordParseWarnings("group", warns)
		if parseErr != nil {
			log.Warn("groups file unreadable, group references will produce empty chains", "error", parseErr)
		} else {
			groups = gf
		}
	}
	warnings = append(warnings, validateIPSetRefs(vmFiles, hostFile, groups, ipsets)...)

	inventory, err := inv.ListVMs(ctx)
	if err != nil {
		return nil, warnings, fmt.Errorf("cmd: VM inventory: %w", err)
	}

	input := compile.Input{
		VMFiles:   vmFiles,
		HostFile:  hostFile,
		Groups:    groups,
		IPSets:    ipsets,
		Inventory: inventory,
	}
	return compile.Compile(input), warnings, nil
}

func recordParseWarnings(fileKind string, warns []rules.ParseWarning) {
	if len(warns) == 0 {
		return
	}
	metrics.Default().ParseWarningsTotal.WithLabelValues(fileKind).Add(float64(len(warns)))
}

func validateIPSetRefs(vmFiles map[int]*rules.VMFile, hostFile *rules.HostFile, groups *rules.GroupsFile, ipsets map[string]rules.NetworkSet) []rules.ParseWarning {
	var all []rules.Rule
	for _, vf := range vmFiles {
		all = append(all, vf.In...)
		all = append(all, vf.Out...)
	}
	if hostFile != nil {
		all = append(all, hostFile.In...)
		all = append(all, hostFile.Out...)
	}
	if groups != nil {
		for _, g := range groups.Groups {
			all = append(all, g.In...)
			all = append(all, g.Out...)
		}
	}
	return rules.ValidateIPSetReferences(all, ipsets)
}
