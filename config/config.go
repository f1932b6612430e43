// Package config loads the factory controller's startup parameters — the
// listen address, bus size, minimum cycle time, and log verbosity — from a
// small YAML file. Wiring storages, processes, and recipes stays a Go
// assembly API (spec §1's non-goal on the configuration file itself); this
// file only configures the process-independent knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Config is the decoded startup configuration.
type Config struct {
	ListenAddr   string        `json:"listenAddr"`
	BusSize      int           `json:"busSize"`
	MinCycleTime time.Duration `json:"minCycleTime"`
	LogVerbose   bool          `json:"logVerbose"`
}

// rawConfig mirrors Config but with MinCycleTime as a duration string,
// since encoding/json (which sigs.k8s.io/yaml converts through) has no
// native time.Duration support.
type rawConfig struct {
	ListenAddr   string `json:"listenAddr"`
	BusSize      int    `json:"busSize"`
	MinCycleTime string `json:"minCycleTime"`
	LogVerbose   bool   `json:"logVerbose"`
}

// Default returns a Config with every field set to its default, matching
// spec §6: listen on :1847, a minimum 2s cycle spacing. BusSize has no
// sane default — it must be set, and Load rejects a config that leaves it
// at zero.
func Default() Config {
	return Config{
		ListenAddr:   ":1847",
		MinCycleTime: 2 * time.Second,
	}
}

// Load reads and decodes a YAML config file at path, applying Default()
// for any field the file leaves unset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes directly, used by Load and by tests that
// don't want to touch the filesystem.
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	if raw.ListenAddr != "" {
		cfg.ListenAddr = raw.ListenAddr
	}
	if raw.BusSize != 0 {
		cfg.BusSize = raw.BusSize
	}
	if raw.MinCycleTime != "" {
		d, err := time.ParseDuration(raw.MinCycleTime)
		if err != nil {
			return Config{}, fmt.Errorf("config: minCycleTime: %w", err)
		}
		cfg.MinCycleTime = d
	}
	cfg.LogVerbose = raw.LogVerbose
	if cfg.BusSize <= 0 {
		return Config{}, fmt.Errorf("config: busSize must be set to a positive value")
	}
	return cfg, nil
}
