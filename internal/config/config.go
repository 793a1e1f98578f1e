package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals a YAML string like "5s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// RendezvousField handles rendezvous: <path> | {path: <path>, watch: bool}.
// The bare scalar form defaults watch to true; the watch itself is
// diagnostic-only (see internal/agenttransport.Service.startWatch).
type RendezvousField struct {
	Path  string
	Watch bool
}

func (r *RendezvousField) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Path = value.Value
		r.Watch = true
		return nil
	}
	var structured struct {
		Path  string `yaml:"path"`
		Watch *bool  `yaml:"watch"`
	}
	if err := value.Decode(&structured); err != nil {
		return err
	}
	r.Path = structured.Path
	if structured.Watch == nil {
		r.Watch = true
	} else {
		r.Watch = *structured.Watch
	}
	return nil
}

// Config is the full relay configuration: what AT needs to find the agent,
// what CM needs to listen for clients, and how the two talk to each other
// over internal/ipc.
type Config struct {
	// Rendezvous locates the agent's rendezvous file.
	Rendezvous RendezvousField `yaml:"rendezvous"`

	// ConnectTimeout overrides AT's loopback connect timeout. Zero means
	// "use the built-in default".
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`

	// ClientSocket is CM's local client rendezvous socket path.
	ClientSocket string `yaml:"client_socket"`

	// IPCSocket is where AT serves, and CM dials, the inter-context API. A
	// unix-socket path.
	IPCSocket string `yaml:"ipc_socket"`

	LogLevel string `yaml:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`

	AcceptRatePerSecond float64 `yaml:"accept_rate_per_second,omitempty"`
	AcceptBurst         int     `yaml:"accept_burst,omitempty"`
}

const (
	defaultConnectTimeout = 5 * time.Second
	defaultLogLevel       = "info"
)

// Default returns the configuration used when no config file is given:
// standard gpg-agent rendezvous/socket locations under $GNUPGHOME (falling
// back to ~/.gnupg), the built-in 5s connect timeout, and info-level
// logging to stdout only.
func Default() *Config {
	home, _ := os.UserHomeDir()
	gnupgHome := os.Getenv("GNUPGHOME")
	if gnupgHome == "" {
		gnupgHome = home + "/.gnupg"
	}
	return &Config{
		Rendezvous:     RendezvousField{Path: gnupgHome + "/S.gpg-agent.env", Watch: true},
		ConnectTimeout: Duration(defaultConnectTimeout),
		ClientSocket:   gnupgHome + "/S.gpg-agent",
		IPCSocket:      gnupgHome + "/S.gpg-agent-relay-ipc",
		LogLevel:       defaultLogLevel,
	}
}

// Load reads and parses a YAML config file at path, filling any field the
// file omits from Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ConnectTimeout.Duration() <= 0 {
		cfg.ConnectTimeout = Duration(defaultConnectTimeout)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	return cfg, nil
}
