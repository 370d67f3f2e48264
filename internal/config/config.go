// Package config loads and validates the webmux YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the webmux server.
type Config struct {
	Server            ServerConfig `yaml:"server"`
	SerialConnections []Connection `yaml:"serial_connections"`
}

// ServerConfig describes the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls the per-connection audit log.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Connection describes one serial device to be multiplexed. The descriptor is
// immutable once a session has been opened from it; changing line parameters
// requires removing and re-adding the connection.
type Connection struct {
	Name        string        `yaml:"name"`
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	DataBits    int           `yaml:"data_bits"`
	StopBits    int           `yaml:"stop_bits"`
	Parity      string        `yaml:"parity"`
	FlowControl string        `yaml:"flow_control"`
	Enabled     bool          `yaml:"enabled"`
	Logging     LoggingConfig `yaml:"logging"`
	Description string        `yaml:"description"`
}

// Load reads and parses the YAML configuration at path. It does not validate;
// callers should invoke Validate on the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the configuration for structural errors. The duplicate-name
// and zero-port messages are load-bearing: operators and tests match on them.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.SerialConnections))
	for _, conn := range c.SerialConnections {
		if conn.Name == "" {
			return fmt.Errorf("connection name must not be empty")
		}
		if names[conn.Name] {
			return fmt.Errorf("Duplicate connection name: %s", conn.Name)
		}
		names[conn.Name] = true

		if err := conn.validateLineParameters(); err != nil {
			return fmt.Errorf("connection %s: %w", conn.Name, err)
		}
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("Server port must be greater than 0")
	}
	if c.Server.Port > 65535 {
		return fmt.Errorf("Server port must be at most 65535")
	}

	return nil
}

func (c Connection) validateLineParameters() error {
	if c.Port == "" {
		return fmt.Errorf("serial port path must not be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d: must be positive", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("invalid data bits %d: must be between 5 and 8", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", c.StopBits)
	}
	switch c.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("unsupported parity %q: expected none, odd, or even", c.Parity)
	}
	switch c.FlowControl {
	case "none", "software", "hardware":
	default:
		return fmt.Errorf("unsupported flow control %q: expected none, software, or hardware", c.FlowControl)
	}
	return nil
}
