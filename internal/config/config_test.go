package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danhigham/quickchat/internal/config"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`server:
  base_url: https://chat.example.com
  socket_url: wss://chat.example.com/ws
timeouts:
  request: 5s
reconnect:
  max_attempts: 3
log_level: debug
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.Server.BaseURL, "https://chat.example.com")
	}
	if cfg.Server.SocketURL != "wss://chat.example.com/ws" {
		t.Errorf("SocketURL = %q", cfg.Server.SocketURL)
	}
	if cfg.Timeouts.Request != 5*time.Second {
		t.Errorf("Timeouts.Request = %v, want 5s", cfg.Timeouts.Request)
	}
	if cfg.Reconnect.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Reconnect.MaxAttempts)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timeouts.Connect != 10*time.Second {
		t.Errorf("Timeouts.Connect = %v, want 10s", cfg.Timeouts.Connect)
	}
	if cfg.Reconnect.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.Reconnect.MaxDelay)
	}
	if cfg.Server.BaseURL == "" {
		t.Error("BaseURL default not applied")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOrDefault_BadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.LoadOrDefault(cfgPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigDir(t *testing.T) {
	dir := config.Dir()
	if dir == "" {
		t.Error("Dir() returned empty string")
	}
}
