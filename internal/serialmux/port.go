package serialmux

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/alexconrey/webmux/internal/config"
)

// DevicePort is the minimal interface needed for a serial device.
// This abstraction enables unit testing without real serial hardware.
// Implementations must support one concurrent reader and one concurrent
// writer: the session gives each half to a dedicated goroutine.
type DevicePort interface {
	io.ReadWriter
	io.Closer
}

// PortFactory opens serial devices. This abstraction enables dependency
// injection of device creation so sessions can be tested against fakes.
type PortFactory interface {
	// Open opens the device at path with the given mode.
	Open(path string, mode *serial.Mode) (DevicePort, error)
}

// SystemPortFactory opens real serial devices via go.bug.st/serial.
type SystemPortFactory struct{}

// Open opens the named device with the given mode.
func (SystemPortFactory) Open(path string, mode *serial.Mode) (DevicePort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// ModeFor converts a connection descriptor into the serial.Mode required by
// go.bug.st/serial. Flow control is validated by the config layer but has no
// counterpart in serial.Mode; it is recorded in the descriptor only.
func ModeFor(cfg config.Connection) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", cfg.StopBits)
	}

	switch cfg.Parity {
	case "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %q: expected none, odd, or even", cfg.Parity)
	}

	return mode, nil
}
