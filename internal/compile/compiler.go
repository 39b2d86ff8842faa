package compile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pvefw.dev/core/internal/rules"
)

// Input is everything the compiler needs: the parsed IR for every VM,
// host, and group file, the supplemented ipset definitions, and the
// VM inventory already resolved by the out-of-scope inventory
// collaborator.
type Input struct {
	VMFiles   map[int]*rules.VMFile
	HostFile  *rules.HostFile
	Groups    *rules.GroupsFile
	IPSets    map[string]rules.NetworkSet
	Inventory map[int]VMConfig
}

type compiler struct {
	in          Input
	rs          *Ruleset
	groupsBuilt map[string]bool
}

// Compile builds a Ruleset from Input. Pure function: the same Input
// always produces a byte-identical Ruleset.
func Compile(in Input) *Ruleset {
	c := &compiler{in: in, rs: NewRuleset(), groupsBuilt: make(map[string]bool)}
	c.buildAlwaysPresentChains()
	c.buildBridgesAndTaps()
	c.buildHostFirewall()
	return c.rs
}

func (c *compiler) buildAlwaysPresentChains() {
	c.rs.EnsureChain("PVEFW-INPUT")
	c.rs.EnsureChain("PVEFW-OUTPUT")
	c.rs.EnsureChain("PVEFW-FORWARD")
	c.rs.Append("PVEFW-FORWARD", "-A PVEFW-FORWARD -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT")
	c.rs.Append("PVEFW-SET-ACCEPT-MARK", "-A PVEFW-SET-ACCEPT-MARK -j MARK --set-mark 1")
}

type tapIface struct {
	Name string
	VMID int
	Net  NetConfig
}

func (c *compiler) buildBridgesAndTaps() {
	bridges := make(map[string][]tapIface)

	vmids := make([]int, 0, len(c.in.Inventory))
	for vmid := range c.in.Inventory {
		vmids = append(vmids, vmid)
	}
	sort.Ints(vmids)

	for _, vmid := range vmids {
		cfg := c.in.Inventory[vmid]
		for _, netid := range sortedNetIDs(cfg.Nets) {
			net := cfg.Nets[netid]
			if net.Bridge == "" {
				continue
			}
			iface := fmt.Sprintf("tap%di%s", vmid, strings.TrimPrefix(netid, "net"))
			bridges[net.Bridge] = append(bridges[net.Bridge], tapIface{Name: iface, VMID: vmid, Net: net})
		}
	}

	bridgeNames := make([]string, 0, len(bridges))
	for b := range bridges {
		bridgeNames = append(bridgeNames, b)
	}
	sort.Strings(bridgeNames)

	for _, bridge := range bridgeNames {
		c.buildBridgePlumbing(bridge)
		for _, t := range bridges[bridge] {
			c.buildTapChains(t)
			c.spliceTapIntoBridge(bridge, t.Name)
		}
	}
}

func sortedNetIDs(nets map[string]NetConfig) []string {
	ids := make([]string, 0, len(nets))
	for id := range nets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, _ := strconv.Atoi(strings.TrimPrefix(ids[i], "net"))
		nj, _ := strconv.Atoi(strings.TrimPrefix(ids[j], "net"))
		return ni < nj
	})
	return ids
}

// buildBridgePlumbing creates <bridge>-FW/-IN/-OUT and wires the
// forward-into-FW dispatch and cross-bridge DROP per spec.md §4.4. The
// conntrack fast path is chain-wide, not per-bridge, and is emitted once
// by buildAlwaysPresentChains.
func (c *compiler) buildBridgePlumbing(bridge string) {
	fw := bridge + "-FW"
	in := bridge + "-IN"
	out := bridge + "-OUT"
	c.rs.EnsureChain(fw)
	c.rs.EnsureChain(in)
	c.rs.EnsureChain(out)

	c.rs.Append("PVEFW-FORWARD", fmt.Sprintf("-A PVEFW-FORWARD -o %s -m physdev --physdev-is-bridged -j %s", bridge, fw))
	c.rs.Append("PVEFW-FORWARD", fmt.Sprintf("-A PVEFW-FORWARD -i %s -m physdev --physdev-is-bridged -j %s", bridge, fw))
	c.rs.Append("PVEFW-FORWARD", fmt.Sprintf("-A PVEFW-FORWARD -o %s -j DROP", bridge))
	c.rs.Append("PVEFW-FORWARD", fmt.Sprintf("-A PVEFW-FORWARD -i %s -j DROP", bridge))

	c.rs.Append(fw, fmt.Sprintf("-A %s -m physdev --physdev-is-in -j %s", fw, out))
	c.rs.Append(fw, fmt.Sprintf("-A %s -m physdev --physdev-is-out -j %s", fw, in))
}

// buildTapChains creates <iface>-IN/-OUT, their shared preamble, the MAC
// anti-spoof rule on OUT, the VM's own rules with the ACCEPT->RETURN and
// GROUP-<g> rewrites, and the default-policy tail.
func (c *compiler) buildTapChains(t tapIface) {
	inChain := t.Name + "-IN"
	outChain := t.Name + "-OUT"
	c.rs.EnsureChain(inChain)
	c.rs.EnsureChain(outChain)

	for _, chain := range [2]string{inChain, outChain} {
		c.rs.Append(chain, fmt.Sprintf("-A %s -m conntrack --ctstate INVALID -j DROP", chain))
		c.rs.Append(chain, fmt.Sprintf("-A %s -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT", chain))
	}
	if t.Net.MAC != "" {
		c.rs.Append(outChain, fmt.Sprintf("-A %s -m mac ! --mac-source %s -j DROP", outChain, t.Net.MAC))
	}

	opts := rules.DefaultVMOptions()
	var inRules, outRules []rules.Rule
	if vf := c.in.VMFiles[t.VMID]; vf != nil {
		opts = vf.Options
		inRules = vf.In
		outRules = vf.Out
	}

	for _, r := range inRules {
		c.emitDirectionalRule(inChain, r, "in")
	}
	c.emitDefaultPolicy(inChain, "in", opts.PolicyIn, opts.LogLevelIn)

	for _, r := range outRules {
		c.emitDirectionalRule(outChain, r, "out")
	}
	c.emitDefaultPolicy(outChain, "out", opts.PolicyOut, opts.LogLevelOut)
}

// emitDirectionalRule applies the two rewrites a user rule undergoes
// depending on which chain it lands in: ACCEPT->RETURN on OUT, and
// GROUP-<g>->GROUP-<g>-<direction> with a post-jump mark check on OUT.
// The rule is cloned before any rewrite: a shared Rule value (e.g. one
// produced once by macro expansion and reused for both directions) must
// never be mutated in place, or rewriting it for the OUT pass would
// corrupt an already-completed IN pass.
func (c *compiler) emitDirectionalRule(chain string, r rules.Rule, direction string) {
	r = r.Clone()

	if name, ok := r.IsGroupReference(); ok {
		c.ensureGroupChain(name)
		groupChain := fmt.Sprintf("GROUP-%s-%s", name, strings.ToUpper(direction))
		lines := generateRuleLines(chain, r, jumpTo(groupChain), c.in.IPSets)
		c.rs.AppendAll(chain, lines)
		if direction == "out" {
			c.rs.Append(chain, fmt.Sprintf("-A %s -m mark --mark 1 -j RETURN", chain))
		}
		return
	}

	action := r.Action
	if direction == "out" && action == rules.ActionAccept {
		action = rules.ActionReturn
	}
	lines := generateRuleLines(chain, r, jumpTo(action), c.in.IPSets)
	c.rs.AppendAll(chain, lines)
}

// emitDefaultPolicy emits the direction's trailing policy per spec.md
// §4.4: ACCEPT becomes RETURN (out) or ACCEPT (in); DROP/REJECT are
// preceded by a LOG line at the VM's configured log level.
func (c *compiler) emitDefaultPolicy(chain, direction, policy string, logLevel int) {
	switch policy {
	case rules.ActionAccept:
		if direction == "out" {
			c.rs.Append(chain, fmt.Sprintf("-A %s -j RETURN", chain))
		} else {
			c.rs.Append(chain, fmt.Sprintf("-A %s -j ACCEPT", chain))
		}
	case rules.ActionDrop:
		c.rs.Append(chain, fmt.Sprintf("-A %s -j LOG --log-prefix \"%s-dropped: \" --log-level %d", chain, chain, logLevel))
		c.rs.Append(chain, fmt.Sprintf("-A %s -j DROP", chain))
	case rules.ActionReject:
		c.rs.Append(chain, fmt.Sprintf("-A %s -j LOG --log-prefix \"%s-reject: \" --log-level %d", chain, chain, logLevel))
		c.rs.Append(chain, fmt.Sprintf("-A %s -j REJECT", chain))
	}
}

// spliceTapIntoBridge inserts the bridge-to-tap and tap-to-bridge jumps
// at the top of the bridge's IN/OUT chains, and appends the non-bridged
// tap->host variant to PVEFW-INPUT.
func (c *compiler) spliceTapIntoBridge(bridge, iface string) {
	bridgeIn := bridge + "-IN"
	bridgeOut := bridge + "-OUT"
	inChain := iface + "-IN"
	outChain := iface + "-OUT"

	c.rs.Prepend(bridgeIn, fmt.Sprintf("-A %s -m physdev --physdev-out %s --physdev-is-bridged -j %s", bridgeIn, iface, inChain))
	c.rs.Prepend(bridgeOut, fmt.Sprintf("-A %s -m physdev --physdev-in %s --physdev-is-bridged -j %s", bridgeOut, iface, outChain))
	c.rs.Append("PVEFW-INPUT", fmt.Sprintf("-A PVEFW-INPUT -i %s -j %s", iface, outChain))
}

// ensureGroupChain lazily builds GROUP-<name>-IN/-OUT the first time any
// tap chain references it, implementing the group mark protocol: OUT
// begins by clearing the mark, and every ACCEPT user-rule is rewritten to
// goto PVEFW-SET-ACCEPT-MARK rather than jumping to a bridge-specific
// target it cannot know.
func (c *compiler) ensureGroupChain(name string) {
	if c.groupsBuilt[name] {
		return
	}
	c.groupsBuilt[name] = true

	inChain := "GROUP-" + name + "-IN"
	outChain := "GROUP-" + name + "-OUT"
	c.rs.EnsureChain(inChain)
	c.rs.EnsureChain(outChain)

	var gr rules.GroupRules
	if c.in.Groups != nil {
		gr = c.in.Groups.Groups[name]
	}

	for _, r := range gr.In {
		lines := generateRuleLines(inChain, r, jumpTo(r.Action), c.in.IPSets)
		c.rs.AppendAll(inChain, lines)
	}

	c.rs.Append(outChain, fmt.Sprintf("-A %s -j MARK --set-mark 0", outChain))
	for _, r := range gr.Out {
		if r.Action == rules.ActionAccept {
			lines := generateRuleLines(outChain, r, gotoTo(rules.ActionSetAcceptMark), c.in.IPSets)
			c.rs.AppendAll(outChain, lines)
			continue
		}
		lines := generateRuleLines(outChain, r, jumpTo(r.Action), c.in.IPSets)
		c.rs.AppendAll(outChain, lines)
	}
}

const (
	clusterHeartbeatPorts = "5404,5405"
	corosyncPort          = "9000"
	linkLocalMulticast    = "224.0.0.0/24"
)

// buildHostFirewall builds PVEFW-HOST-IN/-OUT when a host rules file is
// present, splices them into PVEFW-INPUT/PVEFW-OUTPUT, and prepends the
// loopback-accept rule to PVEFW-INPUT.
func (c *compiler) buildHostFirewall() {
	if c.in.HostFile == nil {
		return
	}
	hf := c.in.HostFile
	inChain := "PVEFW-HOST-IN"
	outChain := "PVEFW-HOST-OUT"

	c.hostPreamble(inChain)
	for _, r := range hf.In {
		lines := generateRuleLines(inChain, r, jumpTo(r.Action), c.in.IPSets)
		c.rs.AppendAll(inChain, lines)
	}
	c.rs.Append(inChain, fmt.Sprintf("-A %s -j LOG --log-prefix \"%s-dropped: \" --log-level 4", inChain, inChain))
	c.rs.Append(inChain, fmt.Sprintf("-A %s -j DROP", inChain))

	c.hostPreamble(outChain)
	for _, r := range hf.Out {
		action := r.Action
		if action == rules.ActionAccept {
			action = rules.ActionReturn
		}
		lines := generateRuleLines(outChain, r, jumpTo(action), c.in.IPSets)
		c.rs.AppendAll(outChain, lines)
	}
	c.rs.Append(outChain, fmt.Sprintf("-A %s -j LOG --log-prefix \"%s-dropped: \" --log-level 4", outChain, outChain))
	c.rs.Append(outChain, fmt.Sprintf("-A %s -j DROP", outChain))

	c.rs.Append("PVEFW-INPUT", "-A PVEFW-INPUT -j PVEFW-HOST-IN")
	c.rs.Append("PVEFW-OUTPUT", "-A PVEFW-OUTPUT -j PVEFW-HOST-OUT")
	c.rs.Prepend("PVEFW-INPUT", "-A PVEFW-INPUT -i lo -j ACCEPT")
}

func (c *compiler) hostPreamble(chain string) {
	c.rs.Append(chain, fmt.Sprintf("-A %s -m conntrack --ctstate INVALID -j DROP", chain))
	c.rs.Append(chain, fmt.Sprintf("-A %s -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT", chain))
	c.rs.Append(chain, fmt.Sprintf("-A %s -i lo -j ACCEPT", chain))
	c.rs.Append(chain, fmt.Sprintf("-A %s -d %s -j ACCEPT", chain, linkLocalMulticast))
	c.rs.Append(chain, fmt.Sprintf("-A %s -p udp -m multiport --dport %s -j ACCEPT", chain, clusterHeartbeatPorts))
	c.rs.Append(chain, fmt.Sprintf("-A %s -p udp --dport %s -j ACCEPT", chain, corosyncPort))
}
