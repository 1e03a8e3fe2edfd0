// Copyright 2024-2026 Aiku AI

package relay

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the relay configuration. Hosts and the initial channel list
// come from the command line; everything else is read from YAML.
type Config struct {
	SourceHost      string   `yaml:"-"`
	DestinationHost string   `yaml:"-"`
	Channels        []string `yaml:"-"`

	SourcePort      int `yaml:"source_port"`
	DestinationPort int `yaml:"destination_port"`

	// AdminNick is the only destination-side sender whose !commands are
	// executed. Anyone able to use this nick on the destination server can
	// send raw lines to both servers through !rawf and !rawt.
	AdminNick   string `yaml:"admin_nick"`
	Nick        string `yaml:"nick"`
	QuitMessage string `yaml:"quit_message"`

	ThrottleInterval  string `yaml:"throttle_interval"`
	KeepaliveInterval string `yaml:"keepalive_interval"`
	IdleTimeout       string `yaml:"idle_timeout"`
	MinWait           string `yaml:"min_wait"`
	ReconnectDelay    string `yaml:"reconnect_delay"`
	ErrorPause        string `yaml:"error_pause"`
	WriteTimeout      string `yaml:"write_timeout"`

	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`

	// AdminAPIAddr is the listen address for the status HTTP API. Empty
	// disables it.
	AdminAPIAddr string `yaml:"admin_api_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	timing Timing `yaml:"-"`
}

// Timing holds the parsed durations of a Config.
type Timing struct {
	Throttle       time.Duration
	Keepalive      time.Duration
	Idle           time.Duration
	MinWait        time.Duration
	ReconnectDelay time.Duration
	ErrorPause     time.Duration
	WriteTimeout   time.Duration
}

var (
	ErrMissingHosts = errors.New("both source and destination hosts are required")
	ErrMissingAdmin = errors.New("admin_nick cannot be blank")
)

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Int, "source_port")
	helper.Copy(up.Int, "destination_port")
	helper.Copy(up.Str, "admin_nick")
	helper.Copy(up.Str, "nick")
	helper.Copy(up.Str, "quit_message")
	helper.Copy(up.Str, "throttle_interval")
	helper.Copy(up.Str, "keepalive_interval")
	helper.Copy(up.Str, "idle_timeout")
	helper.Copy(up.Str, "min_wait")
	helper.Copy(up.Str, "reconnect_delay")
	helper.Copy(up.Str, "error_pause")
	helper.Copy(up.Str, "write_timeout")
	helper.Copy(up.Bool, "tls_insecure_skip_verify")
	helper.Copy(up.Str, "admin_api_addr")
	helper.Copy(up.Str, "log_level")
	helper.Copy(up.Str, "log_format")
}

// DefaultConfig returns the configuration described by ExampleConfig.
func DefaultConfig() (*Config, error) {
	return ParseConfig(nil)
}

// ParseConfig merges user YAML over ExampleConfig. Keys missing from data
// keep their default value and unknown keys are dropped.
func ParseConfig(data []byte) (*Config, error) {
	var baseNode yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &baseNode); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(data) > 0 {
		var cfgNode yaml.Node
		if err := yaml.Unmarshal(data, &cfgNode); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfgNode.Kind == yaml.DocumentNode && len(cfgNode.Content) > 0 {
			upgradeConfig(up.NewHelper(&baseNode, &cfgNode))
		}
	}
	var cfg Config
	if err := baseNode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads path (if not empty), merges it over the defaults and
// applies IRCFWD_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IRCFWD_ADMIN_NICK"); v != "" {
		c.AdminNick = v
	}
	if v := os.Getenv("IRCFWD_API_ADDR"); v != "" {
		c.AdminAPIAddr = v
	}
}

// PostProcess validates the config, fills derived defaults and parses
// durations. It must be called before the config is handed to New.
func (c *Config) PostProcess() error {
	if c.SourceHost == "" || c.DestinationHost == "" {
		return ErrMissingHosts
	}
	if c.AdminNick == "" {
		return ErrMissingAdmin
	}
	if c.Nick == "" {
		c.Nick = c.AdminNick + "_proxy"
	}
	if c.SourcePort == 0 {
		c.SourcePort = 6697
	}
	if c.DestinationPort == 0 {
		c.DestinationPort = 6697
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"throttle_interval", c.ThrottleInterval, &c.timing.Throttle},
		{"keepalive_interval", c.KeepaliveInterval, &c.timing.Keepalive},
		{"idle_timeout", c.IdleTimeout, &c.timing.Idle},
		{"min_wait", c.MinWait, &c.timing.MinWait},
		{"reconnect_delay", c.ReconnectDelay, &c.timing.ReconnectDelay},
		{"error_pause", c.ErrorPause, &c.timing.ErrorPause},
		{"write_timeout", c.WriteTimeout, &c.timing.WriteTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s %q: must not be negative", f.name, f.raw)
		}
		*f.dst = d
	}
	if c.timing.Throttle == 0 {
		return fmt.Errorf("invalid throttle_interval %q: must be positive", c.ThrottleInterval)
	}
	return nil
}

// Timing returns the durations parsed by PostProcess.
func (c *Config) Timing() Timing {
	return c.timing
}
