package config

import (
	"fmt"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates the whole configuration
func (v *Validator) ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := v.ValidatePort(cfg.Studio.Port); err != nil {
		return fmt.Errorf("studio: %w", err)
	}
	if cfg.Studio.Host == "" {
		return fmt.Errorf("studio: host cannot be empty")
	}

	if err := v.ValidateRelay(cfg.Relay); err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if cfg.MCP.ServerName == "" {
		return fmt.Errorf("mcp: server_name cannot be empty")
	}

	return nil
}

// ValidatePort validates a TCP port number
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateRelay validates relay queue timing settings
func (v *Validator) ValidateRelay(cfg RelayConfig) error {
	if cfg.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", cfg.TimeoutMs)
	}
	if cfg.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", cfg.PollIntervalMs)
	}
	if cfg.PollIntervalMs > cfg.TimeoutMs {
		return fmt.Errorf("poll_interval_ms (%d) cannot exceed timeout_ms (%d)", cfg.PollIntervalMs, cfg.TimeoutMs)
	}
	return nil
}

// ValidateLogLevel validates a log level string
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true,
	}
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s", level)
	}
	return nil
}
