package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFallsBackToDefaultWhenUnset(t *testing.T) {
	old := configPath
	configPath = ""
	defer func() { configPath = old }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.IPCSocket == "" {
		t.Fatal("expected a default IPC socket path")
	}
}

func TestLoadConfigReadsExplicitPath(t *testing.T) {
	old := configPath
	defer func() { configPath = old }()

	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("client_socket: /tmp/custom.sock\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	configPath = path

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ClientSocket != "/tmp/custom.sock" {
		t.Fatalf("client socket = %q, want /tmp/custom.sock", cfg.ClientSocket)
	}
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	old := configPath
	defer func() { configPath = old }()
	configPath = filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
