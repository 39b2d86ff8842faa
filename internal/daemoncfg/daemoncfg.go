// Package daemoncfg holds the daemon's own tunables — lock path, lock
// timeout, tick interval, log level, and the memory-usage self-restart
// threshold — as distinct from the rule-file grammar the parser owns.
// Configuration is HCL, decoded with hclsimple the way the teacher's
// internal/config package decodes its much larger schema.
package daemoncfg

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"pvefw.dev/core/internal/brand"
)

// Config is the daemon's tunable settings.
type Config struct {
	LockPath     string `hcl:"lock_path,optional" json:"lock_path"`
	LockTimeout  string `hcl:"lock_timeout,optional" json:"lock_timeout"`
	TickInterval string `hcl:"tick_interval,optional" json:"tick_interval"`
	LogLevel     string `hcl:"log_level,optional" json:"log_level"`
	MemRestartMB int    `hcl:"mem_restart_mb,optional" json:"mem_restart_mb"`
}

// Default returns the settings in effect when no config file is present
// or a key is omitted.
func Default() Config {
	return Config{
		LockPath:     brand.GetLockPath(),
		LockTimeout:  "10s",
		TickInterval: "30s",
		LogLevel:     "info",
		MemRestartMB: 256,
	}
}

// Load decodes an HCL daemon config file at path. hclsimple's "optional"
// tag leaves an omitted field at Go's zero value rather than our
// default, so every zero-valued field is overlaid with Default() after
// decoding.
func Load(path string) (Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemoncfg: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.LockPath == "" {
		c.LockPath = def.LockPath
	}
	if c.LockTimeout == "" {
		c.LockTimeout = def.LockTimeout
	}
	if c.TickInterval == "" {
		c.TickInterval = def.TickInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.MemRestartMB == 0 {
		c.MemRestartMB = def.MemRestartMB
	}
}

// LockTimeoutDuration parses LockTimeout, defaulting to 10s on a
// malformed or empty value.
func (c Config) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// TickIntervalDuration parses TickInterval, defaulting to 30s on a
// malformed or empty value.
func (c Config) TickIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
