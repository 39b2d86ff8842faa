package kernelfilter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pvefw.dev/core/internal/testutil"
)

// These exercise the real iptables toolchain and mutate no state (Save
// and RuleExists are read-only), but still require the binaries and
// CAP_NET_ADMIN to be present, so they only run under PVEFW_HOST_TEST.
func TestExecRunner_Save(t *testing.T) {
	testutil.RequireHost(t)

	runner := NewExecRunner("filter")
	out, err := runner.Save(context.Background())
	require.NoError(t, err)
	require.Contains(t, string(out), "*filter")
}

func TestExecRunner_RuleExists_AbsentRuleIsFalseNotError(t *testing.T) {
	testutil.RequireHost(t)

	runner := NewExecRunner("filter")
	exists, err := runner.RuleExists(context.Background(), []string{
		"INPUT", "-p", "tcp", "--dport", "1", "-j", "PVEFW-CANARY-RULE-THAT-DOES-NOT-EXIST",
	})
	require.NoError(t, err)
	require.False(t, exists)
}
