package compile

import "context"

// NetConfig is one VM network interface's placement: which bridge it's
// attached to, its optional VLAN tag, and its hardware address if known.
// Mirrors spec's parse_net(string) -> {bridge, tag?, macaddr?}.
type NetConfig struct {
	Bridge string
	Tag    int
	MAC    string // "" if unknown
}

// VMConfig is one VM's resolved network configuration, keyed by the same
// netN identifiers used in rule files ("net0".."net31").
type VMConfig struct {
	VMID int
	Nets map[string]NetConfig
}

// Inventory is the narrow VM-inventory collaborator interface spec.md
// treats as external: list_vms() -> {vmid -> vm_config}. Implementations
// live outside the core (see internal/hostinventory for the default
// netlink-backed adapter); the compiler only ever depends on this
// interface.
type Inventory interface {
	ListVMs(ctx context.Context) (map[int]VMConfig, error)
}

// StaticInventory is a fixed, in-memory Inventory — mainly useful for
// tests and for callers that have already resolved VM configuration
// through some other means.
type StaticInventory map[int]VMConfig

// ListVMs implements Inventory.
func (s StaticInventory) ListVMs(ctx context.Context) (map[int]VMConfig, error) {
	return map[int]VMConfig(s), nil
}
