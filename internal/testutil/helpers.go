package testutil

import (
	"os"
	"testing"
)

// RequireHost skips the test unless PVEFW_HOST_TEST is set. Tests that shell
// out to a real iptables binary and mutate kernel state only run under this
// environment.
func RequireHost(t *testing.T) {
	t.Helper()
	if os.Getenv("PVEFW_HOST_TEST") == "" {
		t.Skip("skipping test: requires PVEFW_HOST_TEST environment")
	}
}
