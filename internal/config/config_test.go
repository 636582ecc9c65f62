package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Platform != model.PlatformIOS || cfg.Permission != PermissionPrompt {
		t.Errorf("platform/permission = %s/%s", cfg.Platform, cfg.Permission)
	}
	if !cfg.Device.Physical || !cfg.Desktop.Enabled {
		t.Error("device.physical and desktop.enabled default to true")
	}
	if cfg.Dispatcher.Interval != 30*time.Second {
		t.Errorf("interval = %s", cfg.Dispatcher.Interval)
	}
	if !strings.HasSuffix(cfg.DBPath, "nudge.db") {
		t.Errorf("db path = %s", cfg.DBPath)
	}
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := writeConfig(t, `
platform: android
device:
  physical: false
dispatcher:
  interval: 5s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform != model.PlatformAndroid {
		t.Errorf("platform = %s", cfg.Platform)
	}
	if cfg.Device.Physical {
		t.Error("explicit false should override the default")
	}
	if cfg.Dispatcher.Interval != 5*time.Second {
		t.Errorf("interval = %s", cfg.Dispatcher.Interval)
	}
	if cfg.Dispatcher.Retention != 30*24*time.Hour {
		t.Errorf("retention should keep its default, got %s", cfg.Dispatcher.Retention)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "platform: android\nhttp:\n  addr: 127.0.0.1:9000\n")
	t.Setenv("NUDGE_PLATFORM", "none")
	t.Setenv("NUDGE_DESKTOP_ENABLED", "false")
	t.Setenv("NUDGE_DISPATCH_INTERVAL", "1m")
	t.Setenv("NUDGE_DB_PATH", "/tmp/other.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform != model.PlatformNone {
		t.Errorf("platform = %s, want env value", cfg.Platform)
	}
	if cfg.Desktop.Enabled {
		t.Error("desktop should be disabled by env")
	}
	if cfg.Dispatcher.Interval != time.Minute {
		t.Errorf("interval = %s", cfg.Dispatcher.Interval)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %s, want the YAML value", cfg.HTTP.Addr)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Errorf("db path = %s", cfg.DBPath)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	path := writeConfig(t, "http:\n  trusted_proxies: [\"127.0.0.1\", \"10.0.0.0/8\"]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(cfg.HTTP.TrustedProxies, ",") != "127.0.0.1,10.0.0.0/8" {
		t.Errorf("trusted proxies = %v", cfg.HTTP.TrustedProxies)
	}

	t.Setenv("NUDGE_HTTP_TRUSTED_PROXIES", "::1, 192.168.0.0/16")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(cfg.HTTP.TrustedProxies, ",") != "::1,192.168.0.0/16" {
		t.Errorf("trusted proxies from env = %v", cfg.HTTP.TrustedProxies)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := Load(""); err != nil {
		t.Errorf("missing default file should be ignored: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing explicit file should be an error")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "unknown platform", content: "platform: windows-phone\n"},
		{name: "unknown permission", content: "permission: maybe\n"},
		{name: "unknown field", content: "plaform: ios\n"},
		{name: "bad log format", content: "log:\n  format: xml\n"},
		{name: "zero interval", content: "dispatcher:\n  interval: 0s\n"},
		{name: "bad env bool", content: "", env: map[string]string{"NUDGE_DEVICE_PHYSICAL": "sometimes"}},
		{name: "bad env duration", content: "", env: map[string]string{"NUDGE_DISPATCH_INTERVAL": "soon"}},
		{name: "bad trusted proxy", content: "http:\n  trusted_proxies: [\"proxy.local\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Push.VAPIDPublicKey = "BPUB"
	cfg.Platform = model.PlatformAndroid

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Push.VAPIDPublicKey != "BPUB" || loaded.Platform != model.PlatformAndroid {
		t.Errorf("loaded = %+v", loaded)
	}
}
