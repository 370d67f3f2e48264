package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
serial_connections:
  - name: a
    port: /dev/pts/3
    baud_rate: 9600
    data_bits: 8
    stop_bits: 1
    parity: none
    flow_control: none
    enabled: true
    logging:
      enabled: false
      path: ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	require.Len(t, cfg.SerialConnections, 1)

	conn := cfg.SerialConnections[0]
	assert.Equal(t, "a", conn.Name)
	assert.Equal(t, "/dev/pts/3", conn.Port)
	assert.Equal(t, 9600, conn.BaudRate)
	assert.Equal(t, 8, conn.DataBits)
	assert.Equal(t, 1, conn.StopBits)
	assert.Equal(t, "none", conn.Parity)
	assert.Equal(t, "none", conn.FlowControl)
	assert.True(t, conn.Enabled)
	assert.False(t, conn.Logging.Enabled)
	assert.Empty(t, conn.Description)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateDuplicateName(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
serial_connections:
  - name: dup
    port: /dev/ttyUSB0
    baud_rate: 9600
    data_bits: 8
    stop_bits: 1
    parity: none
    flow_control: none
    enabled: true
    logging: {enabled: false, path: ""}
  - name: dup
    port: /dev/ttyUSB1
    baud_rate: 9600
    data_bits: 8
    stop_bits: 1
    parity: none
    flow_control: none
    enabled: true
    logging: {enabled: false, path: ""}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate connection name")
}

func TestValidateZeroServerPort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 0}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server port must be greater than 0")
}

func TestValidateLineParameters(t *testing.T) {
	base := Connection{
		Name:        "dev",
		Port:        "/dev/ttyUSB0",
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		FlowControl: "none",
	}

	tests := []struct {
		name    string
		mutate  func(*Connection)
		wantErr string
	}{
		{"valid", func(c *Connection) {}, ""},
		{"empty name", func(c *Connection) { c.Name = "" }, "name must not be empty"},
		{"empty port", func(c *Connection) { c.Port = "" }, "port path must not be empty"},
		{"zero baud", func(c *Connection) { c.BaudRate = 0 }, "invalid baud rate"},
		{"data bits too low", func(c *Connection) { c.DataBits = 4 }, "invalid data bits"},
		{"data bits too high", func(c *Connection) { c.DataBits = 9 }, "invalid data bits"},
		{"bad stop bits", func(c *Connection) { c.StopBits = 3 }, "invalid stop bits"},
		{"bad parity", func(c *Connection) { c.Parity = "mark" }, "unsupported parity"},
		{"bad flow control", func(c *Connection) { c.FlowControl = "dtr" }, "unsupported flow control"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := base
			tc.mutate(&conn)
			cfg := &Config{
				Server:            ServerConfig{Host: "127.0.0.1", Port: 8080},
				SerialConnections: []Connection{conn},
			}
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 9000}
	assert.Equal(t, "0.0.0.0:9000", s.Addr())
}

func TestDescriptionIsOptional(t *testing.T) {
	path := writeConfig(t, `
server: {host: 127.0.0.1, port: 8080}
serial_connections:
  - name: described
    port: /dev/ttyACM0
    baud_rate: 19200
    data_bits: 8
    stop_bits: 1
    parity: even
    flow_control: software
    enabled: false
    logging: {enabled: true, path: logs/described.log}
    description: bench PSU
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "bench PSU", cfg.SerialConnections[0].Description)
	assert.True(t, cfg.SerialConnections[0].Logging.Enabled)
	assert.Equal(t, "logs/described.log", cfg.SerialConnections[0].Logging.Path)
}
