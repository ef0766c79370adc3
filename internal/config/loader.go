package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"gridd/internal/common/fsutil"
	"gridd/internal/node"
)

// Config holds runtime parameters for both grid roles. Zero values mean
// "unspecified" and will be replaced by defaults in main.
type Config struct {
	LogLevel string     `json:"log_level" yaml:"log_level" toml:"log_level"`
	Hub      HubConfig  `json:"hub" yaml:"hub" toml:"hub"`
	Node     NodeConfig `json:"node" yaml:"node" toml:"node"`
}

// HubConfig tunes the scheduler side. Interval knobs are plain integers,
// seconds unless the name says otherwise.
type HubConfig struct {
	Addr                   string `json:"addr" yaml:"addr" toml:"addr"`
	SessionRequestTimeoutS int    `json:"session_request_timeout_s" yaml:"session_request_timeout_s" toml:"session_request_timeout_s"`
	RetryIntervalMS        int    `json:"retry_interval_ms" yaml:"retry_interval_ms" toml:"retry_interval_ms"`
	MaxBacklog             int    `json:"max_backlog" yaml:"max_backlog" toml:"max_backlog"`
	HealthCheckIntervalS   int    `json:"healthcheck_interval_s" yaml:"healthcheck_interval_s" toml:"healthcheck_interval_s"`
	ProbeTimeoutS          int    `json:"probe_timeout_s" yaml:"probe_timeout_s" toml:"probe_timeout_s"`
	DownThreshold          int    `json:"down_threshold" yaml:"down_threshold" toml:"down_threshold"`
	EvictOnFirstDown       bool   `json:"evict_on_first_down" yaml:"evict_on_first_down" toml:"evict_on_first_down"`
	HeartbeatBudget        int    `json:"heartbeat_budget" yaml:"heartbeat_budget" toml:"heartbeat_budget"`
	CORSEnabled            bool   `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	MaxBodyBytes           int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// NodeConfig tunes the worker side: where it listens, how it announces
// itself to the hub, and which slots it offers.
type NodeConfig struct {
	Addr             string          `json:"addr" yaml:"addr" toml:"addr"`
	ID               string          `json:"id" yaml:"id" toml:"id"`
	AdvertiseURI     string          `json:"advertise_uri" yaml:"advertise_uri" toml:"advertise_uri"`
	HubURL           string          `json:"hub_url" yaml:"hub_url" toml:"hub_url"`
	HeartbeatPeriodS int             `json:"heartbeat_period_s" yaml:"heartbeat_period_s" toml:"heartbeat_period_s"`
	Slots            []node.SlotSpec `json:"slots" yaml:"slots" toml:"slots"`
}

// Load reads a configuration file based on its extension. A leading '~' in
// the path is expanded. Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
