package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvefw.dev/core/internal/sysnames"
)

func testDirectory(t *testing.T) *sysnames.Directory {
	t.Helper()
	dir := t.TempDir()
	servicesPath := filepath.Join(dir, "services")
	protocolsPath := filepath.Join(dir, "protocols")
	require.NoError(t, os.WriteFile(servicesPath, []byte("http\t80/tcp\nhttps\t443/tcp\ndomain\t53/udp\n"), 0644))
	require.NoError(t, os.WriteFile(protocolsPath, []byte("tcp\t6\nudp\t17\nicmp\t1\n"), 0644))
	return sysnames.Load(servicesPath, protocolsPath)
}

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "100.fw")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseVMFile_PureAcceptDefaults(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, vf.In)
	assert.Empty(t, vf.Out)
	assert.Equal(t, ActionDrop, vf.Options.PolicyIn)
	assert.Equal(t, ActionAccept, vf.Options.PolicyOut)
}

func TestParseVMFile_MacroExpansion(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nHTTP(ACCEPT) - - - - - -\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, vf.In, 1)
	r := vf.In[0]
	assert.Equal(t, ActionAccept, r.Action)
	assert.Equal(t, "tcp", r.Proto)
	assert.Equal(t, "80", r.DPort)
}

func TestParseVMFile_GroupReference(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nGROUP-web net0 - - - - -\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, vf.In, 1)
	name, ok := vf.In[0].IsGroupReference()
	assert.True(t, ok)
	assert.Equal(t, "web", name)
}

func TestParseVMFile_OptionsSection(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[options]\nenable: 1\npolicy-in: REJECT\npolicy-out: same\nlog_level_in: 2\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, vf.Options.Enable)
	assert.Equal(t, ActionReject, vf.Options.PolicyIn)
	assert.Equal(t, ActionReject, vf.Options.PolicyOut)
	assert.Equal(t, 2, vf.Options.LogLevelIn)
}

func TestParseVMFile_MalformedLineSkippedWithWarning(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nACCEPT net0 - - - - - - - -\nACCEPT net0 - - tcp 80 -\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "fields")
	require.Len(t, vf.In, 1)
}

func TestParseVMFile_LogQualifier(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nACCEPT net0 - - tcp 80 - log\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, vf.In, 1)
	assert.True(t, vf.In[0].Log)
}

func TestMultiPortCardinality(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nACCEPT net0 - - tcp 80,443,8080:8090 -\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, vf.In, 1)
	assert.Equal(t, 4, vf.In[0].NBDPort)
}

func TestPortBoundaries(t *testing.T) {
	assert.False(t, validPortNumber(0))
	assert.True(t, validPortNumber(65535))
	assert.False(t, validPortNumber(65536))
}

func TestPortRangeBoundaries(t *testing.T) {
	d := testDirectory(t)
	assert.Error(t, validatePortList("10:5", d))
	assert.NoError(t, validatePortList("5:5", d))
}

func TestRenderParseRoundTrip(t *testing.T) {
	d := testDirectory(t)
	r := Rule{Action: ActionAccept, Iface: "net0", Source: "10.0.0.1", Dest: "", Proto: "tcp", DPort: "80", SPort: ""}
	line := Render(r, true)
	path := writeRuleFile(t, "[in]\n"+line+"\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, vf.In, 1)
	got := vf.In[0]
	assert.Equal(t, r.Action, got.Action)
	assert.Equal(t, r.Iface, got.Iface)
	assert.Equal(t, r.Source, got.Source)
	assert.Equal(t, r.Dest, got.Dest)
	assert.Equal(t, r.Proto, got.Proto)
	assert.Equal(t, r.DPort, got.DPort)
	assert.Equal(t, r.SPort, got.SPort)
}

func TestParseGroupsFile_MarkProtocolInputs(t *testing.T) {
	d := testDirectory(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.fw")
	require.NoError(t, os.WriteFile(path, []byte("[in:web]\nACCEPT - - tcp 80 -\n[out:web]\nACCEPT - - tcp 80 -\n"), 0644))

	gf, warnings, err := ParseGroupsFile(path, d)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Contains(t, gf.Groups, "web")
	assert.Len(t, gf.Groups["web"].In, 1)
	assert.Len(t, gf.Groups["web"].Out, 1)
}

func TestParseGroupsFile_RejectsGroupReference(t *testing.T) {
	d := testDirectory(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.fw")
	require.NoError(t, os.WriteFile(path, []byte("[in:web]\nGROUP-other - - tcp 80 -\n"), 0644))

	gf, warnings, err := ParseGroupsFile(path, d)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Empty(t, gf.Groups["web"].In)
}

func TestParseIPSetFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ipsets.fw")
	require.NoError(t, os.WriteFile(path, []byte("[ipset trusted]\n10.0.0.0/24\n!10.0.0.5\n"), 0644))

	ipf, warnings, err := ParseIPSetFile(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Contains(t, ipf.Sets, "trusted")
	set := ipf.Sets["trusted"]
	require.Len(t, set.Entries, 2)
	assert.False(t, set.Entries[0].Except)
	assert.True(t, set.Entries[1].Except)
}

func TestUnknownProtocolIsRecoverable(t *testing.T) {
	d := testDirectory(t)
	path := writeRuleFile(t, "[in]\nACCEPT net0 - - bogus 80 -\n")
	vf, warnings, err := ParseVMFile(path, d)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Empty(t, vf.In)
}
