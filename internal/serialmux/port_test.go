package serialmux

import (
	"testing"

	"go.bug.st/serial"

	"github.com/alexconrey/webmux/internal/config"
)

func baseConnection() config.Connection {
	return config.Connection{
		Name:        "bench",
		Port:        "/dev/ttyUSB0",
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		FlowControl: "none",
		Enabled:     true,
	}
}

func TestModeForDefaults(t *testing.T) {
	mode, err := ModeFor(baseConnection())
	if err != nil {
		t.Fatalf("ModeFor failed: %v", err)
	}
	if mode.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", mode.BaudRate)
	}
	if mode.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", mode.DataBits)
	}
	if mode.StopBits != serial.OneStopBit {
		t.Errorf("StopBits = %v, want OneStopBit", mode.StopBits)
	}
	if mode.Parity != serial.NoParity {
		t.Errorf("Parity = %v, want NoParity", mode.Parity)
	}
}

func TestModeForStopBits(t *testing.T) {
	cfg := baseConnection()
	cfg.StopBits = 2
	mode, err := ModeFor(cfg)
	if err != nil {
		t.Fatalf("ModeFor failed: %v", err)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}

	cfg.StopBits = 3
	if _, err := ModeFor(cfg); err == nil {
		t.Error("expected error for 3 stop bits")
	}
}

func TestModeForParity(t *testing.T) {
	tests := []struct {
		parity string
		want   serial.Parity
		ok     bool
	}{
		{"none", serial.NoParity, true},
		{"odd", serial.OddParity, true},
		{"even", serial.EvenParity, true},
		{"mark", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		cfg := baseConnection()
		cfg.Parity = tc.parity
		mode, err := ModeFor(cfg)
		if tc.ok {
			if err != nil {
				t.Errorf("ModeFor(parity=%q) failed: %v", tc.parity, err)
				continue
			}
			if mode.Parity != tc.want {
				t.Errorf("ModeFor(parity=%q) = %v, want %v", tc.parity, mode.Parity, tc.want)
			}
		} else if err == nil {
			t.Errorf("ModeFor(parity=%q) should have failed", tc.parity)
		}
	}
}
