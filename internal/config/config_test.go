package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// TestDefaults verifies the built-in defaults load with no inputs.
func TestDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Grub.ConfigPath != "/etc/default/grub" {
		t.Errorf("ConfigPath = %q", cfg.Grub.ConfigPath)
	}
	if cfg.Grub.MkconfigCmd != "grub2-mkconfig" {
		t.Errorf("MkconfigCmd = %q", cfg.Grub.MkconfigCmd)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q", cfg.Storage.Type)
	}
}

// TestFlagOverrides verifies CLI flags take priority.
func TestFlagOverrides(t *testing.T) {
	cfg, err := Load([]string{
		"-grub-config", "/tmp/grub",
		"-storage", "memory",
		"-socket", "/tmp/test.sock",
		"-port", "9999",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Grub.ConfigPath != "/tmp/grub" {
		t.Errorf("ConfigPath = %q", cfg.Grub.ConfigPath)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q", cfg.Storage.Type)
	}
	if cfg.Server.Socket != "/tmp/test.sock" {
		t.Errorf("Socket = %q", cfg.Server.Socket)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

// TestEnvOverrides verifies environment variables beat the defaults.
func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOTCONFD_GRUB_CONFIG", "/env/grub")
	t.Setenv("BOOTCONFD_VERBOSITY", "2")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Grub.ConfigPath != "/env/grub" {
		t.Errorf("ConfigPath = %q", cfg.Grub.ConfigPath)
	}
	if cfg.Verbosity() != 2 {
		t.Errorf("Verbosity = %d", cfg.Verbosity())
	}
}

// TestTOMLFile verifies values load from a TOML file and flags still
// win over them.
func TestTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[grub]
config_path = "/toml/grub"
mkconfig = "grub-mkconfig"

[storage]
type = "memory"

[server]
shutdown_timeout = "10s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing toml: %v", err)
	}

	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Grub.ConfigPath != "/toml/grub" {
		t.Errorf("ConfigPath = %q", cfg.Grub.ConfigPath)
	}
	if cfg.Grub.MkconfigCmd != "grub-mkconfig" {
		t.Errorf("MkconfigCmd = %q", cfg.Grub.MkconfigCmd)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}

	cfg, err = Load([]string{"-config", path, "-grub-config", "/flag/grub"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Grub.ConfigPath != "/flag/grub" {
		t.Errorf("flag should beat TOML, got %q", cfg.Grub.ConfigPath)
	}
}

// TestVerbosityExpansion verifies -vvv expands into repeated -v flags.
func TestVerbosityExpansion(t *testing.T) {
	got := expandVerbosityFlags([]string{"-vvv", "-port", "1"})
	want := []string{"-v", "-v", "-v", "-port", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandVerbosityFlags = %v, want %v", got, want)
	}

	cfg, err := Load([]string{"-vv"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Verbosity() != 2 {
		t.Errorf("Verbosity = %d, want 2", cfg.Verbosity())
	}
}
