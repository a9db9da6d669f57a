package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"deploygate/api"
	"deploygate/internal/policy"
)

// Config is the runtime configuration for deploygate.
type Config struct {
	PolicyFile     *policy.PolicyFile
	PolicyPath     string
	Command        string
	QueryTimeout   time.Duration
	PromoteTimeout time.Duration
	LogDir         string
	DefaultAction  api.Verdict
	OPAPolicy      string
}

// Load reads a YAML config file and produces a runtime Config.
func Load(path string) (*Config, error) {
	pf, err := policy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	pf, err := policy.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, "")
}

func fromPolicy(pf *policy.PolicyFile, path string) (*Config, error) {
	cfg := &Config{
		PolicyFile:    pf,
		PolicyPath:    path,
		DefaultAction: pf.Settings.DefaultAction,
		OPAPolicy:     pf.Settings.OPAPolicy,
	}

	cfg.Command = pf.Settings.Command
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}

	cfg.LogDir = pf.Settings.LogDir
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	cfg.LogDir = expandHome(cfg.LogDir)

	var err error
	if cfg.QueryTimeout, err = parseTimeout("query_timeout", pf.Settings.QueryTimeout, DefaultQueryTimeout); err != nil {
		return nil, err
	}
	if cfg.PromoteTimeout, err = parseTimeout("promote_timeout", pf.Settings.PromoteTimeout, DefaultPromoteTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseTimeout(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, value)
	}
	return d, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		PolicyFile: &policy.PolicyFile{
			Version: 1,
			Settings: policy.Settings{
				DefaultAction: api.VerdictAllow,
			},
		},
		Command:        DefaultCommand,
		QueryTimeout:   DefaultQueryTimeout,
		PromoteTimeout: DefaultPromoteTimeout,
		LogDir:         expandHome(DefaultLogDir()),
		DefaultAction:  api.VerdictAllow,
	}
}

// MarshalYAML serializes the config for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c.PolicyFile)
}
