// Package brand centralizes the naming and default filesystem paths used
// by the CLI, daemon settings loader, and logging defaults.
package brand

import (
	"os"
	"path/filepath"
)

// Static identity. Unlike the teacher's JSON-embedded brand, there is no
// white-labeling requirement here, so these are plain constants.
const (
	Name             = "pvefw-core"
	Vendor           = "pvefw-core project"
	Description      = "Host-level firewall compiler and reconciler for VM hypervisor nodes"
	ConfigEnvPrefix  = "PVEFW"
	DefaultConfigDir = "/etc/pve-firewall"
	DefaultStateDir  = "/var/lib/pve-firewall"
	DefaultLogDir    = "/var/log/pve-firewall"
	DefaultRunDir    = "/var/run/pve-firewall"
	BinaryName       = "pvefw-core"
	LockFileName     = "pvefw-core.lock"
	DaemonConfigName = "pvefw-core.hcl"
)

// Version metadata, set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// UserAgent returns an identifying string for diagnostics/logging.
func UserAgent() string {
	return Name + "/" + Version
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: PVEFW_STATE_DIR > PVEFW_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return DefaultStateDir
}

// GetLogDir returns the log directory, checking env vars first.
// Priority: PVEFW_LOG_DIR > PVEFW_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: PVEFW_CONFIG_DIR > PVEFW_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetRunDir returns the runtime directory for lock files.
// Priority: PVEFW_RUN_DIR > PVEFW_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return DefaultRunDir
}

// GetLockPath returns the default advisory lock file path.
func GetLockPath() string {
	return filepath.Join(GetRunDir(), LockFileName)
}
