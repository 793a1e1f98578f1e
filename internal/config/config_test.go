package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadScalarRendezvous(t *testing.T) {
	path := writeConfig(t, `
rendezvous: /tmp/gnupg/S.gpg-agent.env
client_socket: /tmp/gnupg/S.gpg-agent
ipc_socket: /tmp/gnupg/relay-ipc
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rendezvous.Path != "/tmp/gnupg/S.gpg-agent.env" {
		t.Errorf("want path, got %q", cfg.Rendezvous.Path)
	}
	if !cfg.Rendezvous.Watch {
		t.Error("want watch=true by default for scalar form")
	}
}

func TestLoadStructuredRendezvous(t *testing.T) {
	path := writeConfig(t, `
rendezvous:
  path: /tmp/gnupg/S.gpg-agent.env
  watch: false
client_socket: /tmp/gnupg/S.gpg-agent
ipc_socket: /tmp/gnupg/relay-ipc
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rendezvous.Watch {
		t.Error("want watch=false from structured form")
	}
}

func TestLoadConnectTimeout(t *testing.T) {
	path := writeConfig(t, `
rendezvous: /tmp/gnupg/S.gpg-agent.env
client_socket: /tmp/gnupg/S.gpg-agent
ipc_socket: /tmp/gnupg/relay-ipc
connect_timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConnectTimeout.Duration() != 2*time.Second {
		t.Errorf("want 2s, got %s", cfg.ConnectTimeout.Duration())
	}
}

func TestLoadDefaultsFillOmittedFields(t *testing.T) {
	path := writeConfig(t, `
client_socket: /tmp/gnupg/S.gpg-agent
ipc_socket: /tmp/gnupg/relay-ipc
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConnectTimeout.Duration() != defaultConnectTimeout {
		t.Errorf("want default connect timeout, got %s", cfg.ConnectTimeout.Duration())
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("want default log level, got %s", cfg.LogLevel)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
client_socket: /tmp/gnupg/S.gpg-agent
ipc_socket: /tmp/gnupg/relay-ipc
connect_timeout: not-a-duration
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
