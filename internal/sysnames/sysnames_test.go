package sysnames

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadServicesAndProtocols(t *testing.T) {
	dir := t.TempDir()
	servicesPath := writeFixture(t, dir, "services", ""+
		"http\t80/tcp\n"+
		"https\t443/tcp\n"+
		"domain\t53/udp\n"+
		"domain\t53/tcp\n"+ // should merge TCP+UDP on the same name
		"# a comment line\n"+
		"\n")
	protocolsPath := writeFixture(t, dir, "protocols", ""+
		"tcp\t6\n"+
		"udp\t17\n"+
		"icmp\t1\n")

	d := Load(servicesPath, protocolsPath)

	svc, ok := d.LookupServiceByName("http")
	require.True(t, ok)
	assert.Equal(t, 80, svc.Port)
	assert.True(t, svc.TCP)
	assert.False(t, svc.UDP)

	dom, ok := d.LookupServiceByName("domain")
	require.True(t, ok)
	assert.True(t, dom.TCP)
	assert.True(t, dom.UDP)

	p, ok := d.LookupProtocolByName("tcp")
	require.True(t, ok)
	assert.Equal(t, 6, p.Number)

	port, ok := d.ResolvePort("https")
	require.True(t, ok)
	assert.Equal(t, 443, port)

	port, ok = d.ResolvePort("9999")
	require.True(t, ok)
	assert.Equal(t, 9999, port)

	_, ok = d.ResolvePort("no-such-service")
	assert.False(t, ok)

	proto, ok := d.ResolveProtocol("icmp")
	require.True(t, ok)
	assert.Equal(t, 1, proto)
}

func TestLoadMissingFilesDegradesToEmpty(t *testing.T) {
	d := Load("/nonexistent/services", "/nonexistent/protocols")
	_, ok := d.LookupServiceByName("http")
	assert.False(t, ok)
	_, ok = d.LookupProtocolByName("tcp")
	assert.False(t, ok)
}

func TestNameResolutionIsCaseSensitive(t *testing.T) {
	dir := t.TempDir()
	servicesPath := writeFixture(t, dir, "services", "http\t80/tcp\n")
	protocolsPath := writeFixture(t, dir, "protocols", "tcp\t6\n")
	d := Load(servicesPath, protocolsPath)

	_, ok := d.LookupServiceByName("HTTP")
	assert.False(t, ok, "service name lookup must be case-sensitive")
}
