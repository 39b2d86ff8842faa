package brand

import (
	"os"
	"testing"
)

func TestIdentity(t *testing.T) {
	if Name == "" {
		t.Error("Name should not be empty")
	}
	if Version == "" {
		t.Error("Version should default to \"dev\"")
	}
}

func TestUserAgent(t *testing.T) {
	if UserAgent() == "" {
		t.Error("UserAgent should not be empty")
	}
}

func TestGetDirectories(t *testing.T) {
	cleanEnv := func() {
		os.Unsetenv(ConfigEnvPrefix + "_PREFIX")
		os.Unsetenv(ConfigEnvPrefix + "_CONFIG_DIR")
		os.Unsetenv(ConfigEnvPrefix + "_STATE_DIR")
		os.Unsetenv(ConfigEnvPrefix + "_LOG_DIR")
		os.Unsetenv(ConfigEnvPrefix + "_RUN_DIR")
	}
	cleanEnv()
	defer cleanEnv()

	if GetConfigDir() != DefaultConfigDir {
		t.Errorf("expected default config dir %s, got %s", DefaultConfigDir, GetConfigDir())
	}
	if GetStateDir() != DefaultStateDir {
		t.Errorf("expected default state dir %s, got %s", DefaultStateDir, GetStateDir())
	}
	if GetLogDir() != DefaultLogDir {
		t.Errorf("expected default log dir %s, got %s", DefaultLogDir, GetLogDir())
	}
	if GetRunDir() != DefaultRunDir {
		t.Errorf("expected default run dir %s, got %s", DefaultRunDir, GetRunDir())
	}

	os.Setenv(ConfigEnvPrefix+"_PREFIX", "/tmp/pvefw-core")
	if GetConfigDir() != "/tmp/pvefw-core/config" {
		t.Errorf("expected prefix config dir, got %s", GetConfigDir())
	}

	os.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/custom/config")
	if GetConfigDir() != "/custom/config" {
		t.Errorf("expected custom config dir override, got %s", GetConfigDir())
	}
}

func TestGetLockPath(t *testing.T) {
	os.Unsetenv(ConfigEnvPrefix + "_RUN_DIR")
	os.Unsetenv(ConfigEnvPrefix + "_PREFIX")
	path := GetLockPath()
	if path == "" {
		t.Error("lock path should not be empty")
	}
}
