// Package config loads the bridge and beacon settings from JSON. Fields
// omitted from the file keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults match the deployed controller setup: the bridge listens on 1235,
// the controller on localhost 1234, receive drains are bounded at 5ms, and
// the leading vehicle beacons every 20ms until second 35.
const (
	DefaultInboundPort     = 1235
	DefaultOutboundAddress = "127.0.0.1"
	DefaultOutboundPort    = 1234
	DefaultReceiveTimeout  = 5 * time.Millisecond
	DefaultBeaconPeriod    = 20 * time.Millisecond
	DefaultStopTime        = 35 * time.Second
)

// Config is the root configuration. Pointer fields distinguish "absent" from
// "explicitly zero"; durations are strings like "5ms" so the JSON matches
// what the logs print.
type Config struct {
	InboundPort     *int    `json:"inbound_port,omitempty"`
	OutboundAddress *string `json:"outbound_address,omitempty"`
	OutboundPort    *int    `json:"outbound_port,omitempty"`
	ReceiveTimeout  *string `json:"receive_timeout,omitempty"`
	BeaconPeriod    *string `json:"beacon_period,omitempty"`
	StopTime        *string `json:"stop_time,omitempty"`
	TelemetryDB     *string `json:"telemetry_db,omitempty"` // empty disables recording
}

// Load reads a Config from a JSON file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ports and duration strings.
func (c *Config) Validate() error {
	if c.InboundPort != nil && (*c.InboundPort < 0 || *c.InboundPort > 65535) {
		return fmt.Errorf("inbound_port out of range: %d", *c.InboundPort)
	}
	if c.OutboundPort != nil && (*c.OutboundPort < 1 || *c.OutboundPort > 65535) {
		return fmt.Errorf("outbound_port out of range: %d", *c.OutboundPort)
	}
	for name, v := range map[string]*string{
		"receive_timeout": c.ReceiveTimeout,
		"beacon_period":   c.BeaconPeriod,
		"stop_time":       c.StopTime,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

func (c *Config) GetInboundPort() int {
	if c != nil && c.InboundPort != nil {
		return *c.InboundPort
	}
	return DefaultInboundPort
}

func (c *Config) GetOutboundAddress() string {
	if c != nil && c.OutboundAddress != nil {
		return *c.OutboundAddress
	}
	return DefaultOutboundAddress
}

func (c *Config) GetOutboundPort() int {
	if c != nil && c.OutboundPort != nil {
		return *c.OutboundPort
	}
	return DefaultOutboundPort
}

func (c *Config) GetReceiveTimeout() time.Duration {
	return c.duration(c.getReceiveTimeout(), DefaultReceiveTimeout)
}

func (c *Config) GetBeaconPeriod() time.Duration {
	return c.duration(c.getBeaconPeriod(), DefaultBeaconPeriod)
}

func (c *Config) GetStopTime() time.Duration {
	return c.duration(c.getStopTime(), DefaultStopTime)
}

func (c *Config) GetTelemetryDB() string {
	if c != nil && c.TelemetryDB != nil {
		return *c.TelemetryDB
	}
	return ""
}

func (c *Config) getReceiveTimeout() *string {
	if c == nil {
		return nil
	}
	return c.ReceiveTimeout
}

func (c *Config) getBeaconPeriod() *string {
	if c == nil {
		return nil
	}
	return c.BeaconPeriod
}

func (c *Config) getStopTime() *string {
	if c == nil {
		return nil
	}
	return c.StopTime
}

// duration resolves an optional duration string, falling back to the default
// on absence. Validate has already rejected unparsable values for loaded
// configs; hand-built configs get the same leniency as absent fields.
func (c *Config) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
