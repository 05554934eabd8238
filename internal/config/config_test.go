package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	cfg := m.Get()
	if cfg.TickRate != 60 || cfg.Capture.WaitTicks != 30 || cfg.Capture.TimeoutTicks != 120 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if m.GetConfigPath() != path {
		t.Fatalf("GetConfigPath() = %q", m.GetConfigPath())
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backend: virtual\nwindow:\n  title: custom\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Backend != BackendVirtual || cfg.Window.Title != "custom" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Window.Width != 800 {
		t.Fatalf("defaults lost: width = %d", cfg.Window.Width)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad yaml":    "backend: [",
		"bad backend": "backend: wayland\n",
		"bad timeout": "capture:\n  wait_ticks: 50\n  timeout_ticks: 10\n",
		"wide window": "window:\n  width: 70000\n",
		"tall window": "window:\n  height: 65536\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewManager(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestSetLookupSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Set("tick_rate", "30"); err != nil {
		t.Fatalf("Set tick_rate: %v", err)
	}
	if err := m.Set("log_level", "DEBUG"); err != nil {
		t.Fatalf("Set log_level: %v", err)
	}
	if err := m.Set("tick_rate", "fast"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := m.Set("tick_rate", "0"); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := m.Set("window.width", "70000"); err == nil {
		t.Fatalf("expected width above 65535 to be rejected")
	}
	if err := m.Set("window.width", "65535"); err != nil {
		t.Fatalf("Set window.width 65535: %v", err)
	}
	if err := m.Set("nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("Set(nope) = %v, want ErrUnknownKey", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := reloaded.Lookup("tick_rate"); got != "30" {
		t.Fatalf("tick_rate = %q, want 30", got)
	}
	if got, _ := reloaded.Lookup("log_level"); got != "debug" {
		t.Fatalf("log_level = %q, want debug", got)
	}
	if reloaded.Get().TickInterval() != time.Second/30 {
		t.Fatalf("TickInterval() = %s", reloaded.Get().TickInterval())
	}
	for _, key := range Keys() {
		if _, err := reloaded.Lookup(key); err != nil {
			t.Fatalf("Lookup(%q): %v", key, err)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.Set("backend", "virtual")
	v.Set("capture.output", "/tmp/x.png")
	v.Set("window.title", "")
	if err := m.ApplyOverrides(v); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	cfg := m.Get()
	if cfg.Backend != BackendVirtual || cfg.Capture.Output != "/tmp/x.png" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Window.Title != "nativeshot example" {
		t.Fatalf("empty override replaced title: %q", cfg.Window.Title)
	}

	bad := viper.New()
	bad.Set("tick_rate", "-1")
	if err := m.ApplyOverrides(bad); err == nil {
		t.Fatalf("expected invalid override error")
	}
}
