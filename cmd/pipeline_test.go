package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvefw.dev/core/internal/compile"
)

func withTempRuleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origFirewall, origGroups, origHost, origIPSet := FirewallDir, GroupsPath, HostPath, IPSetPath
	FirewallDir = dir
	GroupsPath = filepath.Join(dir, "groups.fw")
	HostPath = filepath.Join(dir, "host.fw")
	IPSetPath = filepath.Join(dir, "ipset.fw")
	t.Cleanup(func() {
		FirewallDir, GroupsPath, HostPath, IPSetPath = origFirewall, origGroups, origHost, origIPSet
	})
	return dir
}

func TestLoadAndCompile_DiscoversVMFilesByFilenameVMID(t *testing.T) {
	dir := withTempRuleDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.fw"), []byte(
		"[in]\nACCEPT net0 - - tcp 22 -\n",
	), 0644))
	// Non-numeric stem must be skipped, not error out the whole run.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notanumber.fw"), []byte("[in]\n"), 0644))

	inv := compile.StaticInventory{
		100: compile.VMConfig{VMID: 100, Nets: map[string]compile.NetConfig{
			"net0": {Bridge: "vmbr0"},
		}},
	}

	rs, warnings, err := LoadAndCompile(context.Background(), inv)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, rs.Chains["tap100i0-IN"], "-A tap100i0-IN -p tcp --dport 22 -j ACCEPT")
}

func TestLoadAndCompile_MissingOptionalFilesIsNotAnError(t *testing.T) {
	withTempRuleDir(t)

	rs, warnings, err := LoadAndCompile(context.Background(), compile.StaticInventory{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotNil(t, rs)
}

func TestLoadAndCompile_UnresolvedIPSetReferenceWarnsRegardlessOfGroupsFile(t *testing.T) {
	dir := withTempRuleDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.fw"), []byte(
		"[in]\nACCEPT net0 +nosuchset - tcp 22 -\n",
	), 0644))

	inv := compile.StaticInventory{
		100: compile.VMConfig{VMID: 100, Nets: map[string]compile.NetConfig{
			"net0": {Bridge: "vmbr0"},
		}},
	}

	_, warnings, err := LoadAndCompile(context.Background(), inv)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
}
