package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := writeConfig(t, `
api_base_url = "https://api.test"
hub_base_url = "wss://hub.test"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.APIBaseURL != "https://api.test" {
		t.Errorf("api_base_url = %q", cfg.APIBaseURL)
	}
	if cfg.DebounceWindow.Duration != DefaultDebounceWindow {
		t.Errorf("debounce window = %v, want default %v", cfg.DebounceWindow.Duration, DefaultDebounceWindow)
	}
	if cfg.ReconnectBackoff.Duration != DefaultReconnectBackoff {
		t.Errorf("reconnect backoff = %v, want default", cfg.ReconnectBackoff.Duration)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listen addr = %q, want default", cfg.ListenAddr)
	}
	if cfg.StorageDir == "" || cfg.CredentialFile == "" {
		t.Error("expected storage dir and credential file to be defaulted")
	}
}

func TestLoadConfigExplicitDurations(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := writeConfig(t, `
debounce_window = "250ms"
reconnect_backoff = "2s"
reconnect_max_backoff = "1m"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.DebounceWindow.Duration != 250*time.Millisecond {
		t.Errorf("debounce window = %v", cfg.DebounceWindow.Duration)
	}
	if cfg.ReconnectMaxBackoff.Duration != time.Minute {
		t.Errorf("max backoff = %v", cfg.ReconnectMaxBackoff.Duration)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("loading missing config: %v", err)
	}
	if cfg.DebounceWindow.Duration != DefaultDebounceWindow {
		t.Errorf("debounce window = %v", cfg.DebounceWindow.Duration)
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.APIBaseURL = "https://api.roundtrip"
	cfg.DebounceWindow = Duration{123 * time.Millisecond}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	if loaded.APIBaseURL != "https://api.roundtrip" {
		t.Errorf("api_base_url = %q", loaded.APIBaseURL)
	}
	if loaded.DebounceWindow.Duration != 123*time.Millisecond {
		t.Errorf("debounce window = %v", loaded.DebounceWindow.Duration)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	cfg := &Config{}
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("saving template: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading template: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("template is empty")
	}
}
