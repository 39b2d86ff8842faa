package daemoncfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "10s", cfg.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.LockTimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.TickIntervalDuration())
}

func TestLoad_OverlaysDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`+"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "10s", cfg.LockTimeout)
	assert.Equal(t, 256, cfg.MemRestartMB)
}

func TestLoad_FullyOverridden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.hcl")
	content := `
lock_path = "/tmp/custom.lock"
lock_timeout = "5s"
tick_interval = "1m"
log_level = "warn"
mem_restart_mb = 512
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.lock", cfg.LockPath)
	assert.Equal(t, 5*time.Second, cfg.LockTimeoutDuration())
	assert.Equal(t, time.Minute, cfg.TickIntervalDuration())
	assert.Equal(t, 512, cfg.MemRestartMB)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}
