// Package config provides configuration management for parallel-ssh.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration structure
type Config struct {
	Hosts        string        `mapstructure:"hosts"`         // Comma-separated host identifiers
	HostFile     string        `mapstructure:"hostfile"`      // Path to file containing host identifiers
	Inventory    string        `mapstructure:"inventory"`     // Path to Ansible-style inventory file
	Group        string        `mapstructure:"group"`         // Inventory group to target
	Filter       string        `mapstructure:"filter"`        // Filter expression applied to the target list
	GroupBy      string        `mapstructure:"group-by"`      // Group execution by property or tag
	MaxProcs     int           `mapstructure:"max-procs"`     // Concurrency ceiling for the run set
	Timeout      time.Duration `mapstructure:"timeout"`       // Per-target deadline (0 for none)
	ExpectedExit int           `mapstructure:"expected-exit"` // Exit code classified as success
	SSHBinary    string        `mapstructure:"ssh-binary"`    // ssh executable path ("" resolves from PATH)
	Output       string        `mapstructure:"output"`        // Output format (streamed, buffered, json)
	Quiet        bool          `mapstructure:"quiet"`         // Suppress non-error output
	DryRun       bool          `mapstructure:"dry-run"`       // Show execution plan without spawning
	LogLevel     string        `mapstructure:"log-level"`     // Log level (info, error)
	LogFormat    string        `mapstructure:"log-format"`    // Log format (json, text)
	ShowProgress bool          `mapstructure:"progress"`      // Show progress bar
	ShowStats    bool          `mapstructure:"stats"`         // Show batch statistics after completion
}

// Manager defines the interface for configuration management
type Manager interface {
	// Load reads configuration from all sources (files, env vars)
	Load() (*Config, error)

	// SetDefaults establishes default configuration values
	SetDefaults()

	// Validate ensures configuration values are valid and consistent
	Validate(config *Config) error
}

// ViperManager implements the Manager interface using Viper
type ViperManager struct {
	v *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager() Manager {
	return &ViperManager{
		v: viper.New(),
	}
}

// SetDefaults establishes default configuration values
func (m *ViperManager) SetDefaults() {
	m.v.SetDefault("max-procs", 1)
	m.v.SetDefault("timeout", time.Duration(0)) // No timeout by default
	m.v.SetDefault("expected-exit", 0)
	m.v.SetDefault("ssh-binary", "")
	m.v.SetDefault("output", "streamed")
	m.v.SetDefault("quiet", false)
	m.v.SetDefault("dry-run", false)
	m.v.SetDefault("log-level", "info")
	m.v.SetDefault("log-format", "text")
	m.v.SetDefault("progress", false)
	m.v.SetDefault("stats", false)
}

// Load reads configuration from all sources with proper precedence
func (m *ViperManager) Load() (*Config, error) {
	// Set defaults first
	m.SetDefaults()

	// Configure config file locations and formats
	m.v.SetConfigName("config")

	// Add config paths in precedence order (current dir highest, system lowest)
	m.v.AddConfigPath(".") // Current directory (highest precedence)

	// Add user config path
	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "parallel-ssh")
		m.v.AddConfigPath(userConfigDir)
	}

	// Add system config path (lowest precedence)
	m.v.AddConfigPath("/etc/parallel-ssh/")

	// Set up environment variable handling
	m.v.SetEnvPrefix("PARALLEL_SSH")
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	// Try to read config file with multiple formats
	formats := []string{"yaml", "yml", "json", "toml"}

	for _, format := range formats {
		m.v.SetConfigType(format)
		if err := m.v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading %s config file: %w", format, err)
			}
		} else {
			// Config file found and loaded successfully
			break
		}
	}

	// Unmarshal into Config struct
	var config Config
	if err := m.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate the configuration
	if err := m.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate ensures configuration values are valid and consistent
func (m *ViperManager) Validate(config *Config) error {
	// Validate concurrency ceiling
	if config.MaxProcs < 1 {
		return fmt.Errorf("max-procs must be at least 1, got %d", config.MaxProcs)
	}
	if config.MaxProcs > 1000 {
		return fmt.Errorf("max-procs too high: %d (maximum 1000)", config.MaxProcs)
	}

	// Validate timeout
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", config.Timeout)
	}

	// Validate expected exit code
	if config.ExpectedExit < 0 || config.ExpectedExit > 255 {
		return fmt.Errorf("expected-exit must be in range 0-255, got %d", config.ExpectedExit)
	}

	// Validate output format
	validOutputs := map[string]bool{
		"streamed": true,
		"buffered": true,
		"json":     true,
	}
	if !validOutputs[config.Output] {
		return fmt.Errorf("invalid output format '%s': must be one of 'streamed', 'buffered', or 'json'", config.Output)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"info":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level '%s': must be one of 'info' or 'error'", config.LogLevel)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format '%s': must be one of 'json' or 'text'", config.LogFormat)
	}

	return nil
}
