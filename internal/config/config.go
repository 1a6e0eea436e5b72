package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Studio Bridge configuration
type Config struct {
	// Studio-facing HTTP server (plugin polling)
	Studio StudioConfig `json:"studio" mapstructure:"studio"`

	// Relay queue tuning
	Relay RelayConfig `json:"relay" mapstructure:"relay"`

	// MCP surface
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// StudioConfig configures the HTTP server the Studio plugin polls
type StudioConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// RelayConfig configures the relay queue timing contract
type RelayConfig struct {
	// TimeoutMs is how long a tool call waits for the plugin before failing
	TimeoutMs int `json:"timeout_ms" mapstructure:"timeout_ms"`
	// PollIntervalMs bounds the added latency of the await re-check loop
	PollIntervalMs int `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// MCPConfig configures the agent-facing MCP server
type MCPConfig struct {
	ServerName string `json:"server_name" mapstructure:"server_name"`
}

// LoggingConfig configures logging behavior
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
	// AuditFile receives the structured tool-call audit trail
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Studio: StudioConfig{
			// The plugin polls from the same machine; never bind wide by default.
			Host: "127.0.0.1",
			Port: 3002,
		},
		Relay: RelayConfig{
			TimeoutMs:      30000,
			PollIntervalMs: 200,
		},
		MCP: MCPConfig{
			ServerName: "studiobridge",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  false,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
