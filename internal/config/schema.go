// Package config handles YAML configuration loading, environment variable
// expansion, credential loading, and structural validation for relayctl.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Relay tunes the replay loop and seeds the allow-list.
	Relay RelayConfig `yaml:"relay"`

	// Telemetry configures trace export. Disabled when Endpoint is empty.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Audit controls the JSONL audit trail of control actions.
	Audit AuditConfig `yaml:"audit"`
}

// RelayConfig holds replay pacing and the initial authorized users.
type RelayConfig struct {
	// PacingDelay is the wait after each evaluated message ID.
	PacingDelay time.Duration `yaml:"pacing_delay"`

	// FloodBuffer is added on top of every rate-limit wait.
	FloodBuffer time.Duration `yaml:"flood_buffer"`

	// AllowUsers are authorized in addition to the owner.
	AllowUsers []int64 `yaml:"allow_users,omitempty"`
}

// Defaults used when the relay section omits a value.
const (
	DefaultPacingDelay = 1500 * time.Millisecond
	DefaultFloodBuffer = 2 * time.Second
)

// Defaults fills zero values.
func (c *RelayConfig) Defaults() {
	if c.PacingDelay == 0 {
		c.PacingDelay = DefaultPacingDelay
	}
	if c.FloodBuffer == 0 {
		c.FloodBuffer = DefaultFloodBuffer
	}
}

// TelemetryConfig configures the OTLP/HTTP trace exporter.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// AuditConfig locates the audit trail. Path defaults to audit.jsonl in the
// data directory.
type AuditConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}
