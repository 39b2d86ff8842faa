// Package hostinventory is the default, swappable VM inventory adapter:
// it enumerates host network interfaces named tap<vmid>i<N> and resolves
// each one's bridge master and hardware address via netlink. The core
// compiler never imports this package directly — it only ever sees
// compile.Inventory — preserving the boundary spec.md draws around the
// VM inventory as an out-of-scope external collaborator.
package hostinventory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vishvananda/netlink"

	"pvefw.dev/core/internal/compile"
	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/validation"
)

var tapNameRe = regexp.MustCompile(`^tap(\d+)i(\d+)$`)

// NetlinkInventory implements compile.Inventory by walking the host's
// link list for interfaces matching tap<vmid>i<N> and resolving each
// one's bridge master (by link index) and MAC address.
type NetlinkInventory struct{}

// New returns a NetlinkInventory.
func New() *NetlinkInventory { return &NetlinkInventory{} }

// ListVMs implements compile.Inventory.
func (n *NetlinkInventory) ListVMs(ctx context.Context) (map[int]compile.VMConfig, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("hostinventory: list links: %w", err)
	}

	byIndex := make(map[int]netlink.Link, len(links))
	for _, l := range links {
		byIndex[l.Attrs().Index] = l
	}

	log := logging.Default().WithComponent("hostinventory")
	result := make(map[int]compile.VMConfig)

	for _, l := range links {
		attrs := l.Attrs()
		m := tapNameRe.FindStringSubmatch(attrs.Name)
		if m == nil {
			continue
		}
		vmid, err := strconv.Atoi(m[1])
		if err != nil {
			log.Warn("unparseable tap interface name", "iface", attrs.Name)
			continue
		}
		netid := "net" + m[2]

		var bridge string
		if attrs.MasterIndex != 0 {
			if master, ok := byIndex[attrs.MasterIndex]; ok {
				bridge = master.Attrs().Name
			}
		}
		if bridge == "" {
			log.Warn("tap interface has no bridge master, skipping", "iface", attrs.Name)
			continue
		}
		if err := validation.ValidateInterfaceName(bridge); err != nil {
			log.Warn("bridge master name failed validation, skipping", "iface", attrs.Name, "bridge", bridge, "error", err)
			continue
		}

		cfg, ok := result[vmid]
		if !ok {
			cfg = compile.VMConfig{VMID: vmid, Nets: make(map[string]compile.NetConfig)}
		}
		cfg.Nets[netid] = compile.NetConfig{
			Bridge: bridge,
			MAC:    attrs.HardwareAddr.String(),
		}
		result[vmid] = cfg
	}

	return result, nil
}
