// Package agentconfig loads the agent's optional YAML tuning file
// (SPEC_FULL.md "Configuration"): poll interval, sync-marker advance
// threshold, pipe buffer size, and debug category flags, on top of the
// four positional CLI arguments spec.md §4.7 mandates. Grounded on the
// teacher's internal/config package: a Config struct with yaml tags,
// Load/LoadFrom that treat a missing file as "no overrides" rather than
// an error.
package agentconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables the YAML file may override. Zero values mean
// "use the package defaults already wired into internal/scraper,
// internal/agentloop, and internal/pipeio".
type Config struct {
	PollIntervalMillis    int      `yaml:"poll_interval_ms"`
	SyncMarkerAdvanceRows int      `yaml:"sync_marker_advance_rows"`
	PipeBufferBytes       int      `yaml:"pipe_buffer_bytes"`
	Debug                 []string `yaml:"debug"`
	ShowConsole           bool     `yaml:"show_console"`
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval returns the configured poll interval, or 0 if unset.
func (c *Config) PollInterval() time.Duration {
	if c == nil || c.PollIntervalMillis <= 0 {
		return 0
	}
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Load reads the agent config from the path named by WINAGENT_CONFIG, or
// returns an empty Config if that variable is unset. Like LoadFrom, a
// missing file at that path is not an error either: it's treated the same
// as an unset path.
func Load() (*Config, error) {
	path := os.Getenv("WINAGENT_CONFIG")
	if path == "" {
		return &Config{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses the YAML config at path. A missing file
// returns an empty Config with no error, matching the CLI's "--config is
// optional" contract.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}
