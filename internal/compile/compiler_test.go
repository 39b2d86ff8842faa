package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvefw.dev/core/internal/rules"
)

func singleTapInventory() map[int]VMConfig {
	return map[int]VMConfig{
		100: {VMID: 100, Nets: map[string]NetConfig{
			"net0": {Bridge: "vmbr0", MAC: "aa:bb:cc:dd:ee:ff"},
		}},
	}
}

func TestCompile_PureAcceptDefaults(t *testing.T) {
	in := Input{
		VMFiles: map[int]*rules.VMFile{
			100: {VMID: 100, Options: rules.DefaultVMOptions()},
		},
		Inventory: singleTapInventory(),
	}
	rs := Compile(in)

	require.Contains(t, rs.Chains, "tap100i0-IN")
	require.Contains(t, rs.Chains, "tap100i0-OUT")
	assert.Contains(t, rs.Chains["tap100i0-IN"], "-A tap100i0-IN -j DROP")
	assert.Contains(t, rs.Chains["tap100i0-OUT"], "-A tap100i0-OUT -j RETURN")
}

func TestCompile_MacroExpansionIntoTapChain(t *testing.T) {
	templates, _, ok := rules.LookupMacro("SSH")
	require.True(t, ok)
	expanded := rules.ExpandMacro(templates, rules.Rule{}, rules.ActionAccept)

	in := Input{
		VMFiles: map[int]*rules.VMFile{
			100: {VMID: 100, In: expanded, Options: rules.DefaultVMOptions()},
		},
		Inventory: singleTapInventory(),
	}
	rs := Compile(in)

	assert.Contains(t, rs.Chains["tap100i0-IN"], "-A tap100i0-IN -p tcp --dport 22 -j ACCEPT")
}

func TestCompile_GroupMarkProtocol(t *testing.T) {
	in := Input{
		VMFiles: map[int]*rules.VMFile{
			100: {
				VMID: 100,
				In:   []rules.Rule{{Action: "GROUP-web", Proto: "tcp", DPort: "80"}},
				Out:  []rules.Rule{{Action: "GROUP-web", Proto: "tcp", DPort: "80"}},
				Options: rules.DefaultVMOptions(),
			},
		},
		Groups: &rules.GroupsFile{Groups: map[string]rules.GroupRules{
			"web": {
				In:  []rules.Rule{{Action: rules.ActionAccept, Proto: "tcp", DPort: "80"}},
				Out: []rules.Rule{{Action: rules.ActionAccept, Proto: "tcp", DPort: "80"}},
			},
		}},
		Inventory: singleTapInventory(),
	}
	rs := Compile(in)

	require.Contains(t, rs.Chains, "GROUP-web-OUT")
	outLines := rs.Chains["GROUP-web-OUT"]
	require.True(t, len(outLines) >= 2)
	assert.Equal(t, "-A GROUP-web-OUT -j MARK --set-mark 0", outLines[0])
	assert.Contains(t, outLines, "-A GROUP-web-OUT -p tcp --dport 80 -g PVEFW-SET-ACCEPT-MARK")

	tapOut := rs.Chains["tap100i0-OUT"]
	jumpIdx := indexOfContains(tapOut, "-j GROUP-web-OUT")
	require.GreaterOrEqual(t, jumpIdx, 0)
	require.Less(t, jumpIdx+1, len(tapOut))
	assert.Equal(t, "-A tap100i0-OUT -m mark --mark 1 -j RETURN", tapOut[jumpIdx+1])
}

func TestCompile_PolicyReject(t *testing.T) {
	opts := rules.DefaultVMOptions()
	opts.PolicyIn = rules.ActionReject
	opts.LogLevelIn = 2
	in := Input{
		VMFiles:   map[int]*rules.VMFile{100: {VMID: 100, Options: opts}},
		Inventory: singleTapInventory(),
	}
	rs := Compile(in)

	inLines := rs.Chains["tap100i0-IN"]
	assert.Contains(t, inLines, "-A tap100i0-IN -j LOG --log-prefix \"tap100i0-IN-reject: \" --log-level 2")
	assert.Contains(t, inLines, "-A tap100i0-IN -j REJECT")
}

func TestCompile_IdempotentAcrossInvocations(t *testing.T) {
	in := Input{
		VMFiles:   map[int]*rules.VMFile{100: {VMID: 100, Options: rules.DefaultVMOptions()}},
		Inventory: singleTapInventory(),
	}
	first := Compile(in)
	second := Compile(in)
	assert.Equal(t, first.Chains, second.Chains)
	assert.Equal(t, first.Order, second.Order)
}

func TestCompile_MultiPortEmitsMultiportMatcher(t *testing.T) {
	in := Input{
		VMFiles: map[int]*rules.VMFile{
			100: {
				VMID: 100,
				In: []rules.Rule{{
					Action: rules.ActionAccept, Proto: "tcp",
					DPort: "80,443,8080:8090", NBDPort: 4,
				}},
				Options: rules.DefaultVMOptions(),
			},
		},
		Inventory: singleTapInventory(),
	}
	rs := Compile(in)
	assert.Contains(t, rs.Chains["tap100i0-IN"], "-A tap100i0-IN -p tcp --match multiport --dport 80,443,8080:8090 -j ACCEPT")
}

func TestCompile_HostFirewallSplicedIntoInputOutput(t *testing.T) {
	in := Input{
		HostFile: &rules.HostFile{
			In:  []rules.Rule{{Action: rules.ActionAccept, Proto: "tcp", DPort: "22"}},
			Out: []rules.Rule{{Action: rules.ActionAccept}},
		},
	}
	rs := Compile(in)

	require.Contains(t, rs.Chains, "PVEFW-HOST-IN")
	require.Contains(t, rs.Chains, "PVEFW-HOST-OUT")
	assert.Contains(t, rs.Chains["PVEFW-INPUT"], "-A PVEFW-INPUT -j PVEFW-HOST-IN")
	assert.Contains(t, rs.Chains["PVEFW-OUTPUT"], "-A PVEFW-OUTPUT -j PVEFW-HOST-OUT")
	assert.Equal(t, "-A PVEFW-INPUT -i lo -j ACCEPT", rs.Chains["PVEFW-INPUT"][0])
	assert.Contains(t, rs.Chains["PVEFW-HOST-OUT"], "-A PVEFW-HOST-OUT -j RETURN")
}

func TestCompile_BridgePlumbingCrossBridgeDrop(t *testing.T) {
	in := Input{Inventory: singleTapInventory()}
	rs := Compile(in)

	fwd := rs.Chains["PVEFW-FORWARD"]
	assert.Contains(t, fwd, "-A PVEFW-FORWARD -o vmbr0 -j DROP")
	assert.Contains(t, fwd, "-A PVEFW-FORWARD -i vmbr0 -j DROP")
	assert.Contains(t, rs.Chains["vmbr0-FW"], "-A vmbr0-FW -m physdev --physdev-is-in -j vmbr0-OUT")
}

func indexOfContains(lines []string, substr string) int {
	for i, l := range lines {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}
