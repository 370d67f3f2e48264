// Package mockdevice simulates serial device behaviour for exercising webmux
// without hardware. The pure command and telemetry logic lives here; the
// serial I/O loop is in cmd/mockdevice.
package mockdevice

import (
	"fmt"
	"math"
	"strings"
)

// Profile selects which kind of device to simulate.
type Profile int

const (
	IoTSensor Profile = iota
	EmbeddedMCU
	IndustrialPLC
)

// ProfileFromString parses a device type argument. Each profile accepts two
// spellings.
func ProfileFromString(s string) (Profile, bool) {
	switch strings.ToLower(s) {
	case "iot", "sensor":
		return IoTSensor, true
	case "mcu", "embedded":
		return EmbeddedMCU, true
	case "plc", "industrial":
		return IndustrialPLC, true
	default:
		return 0, false
	}
}

// Name returns the human-readable profile name.
func (p Profile) Name() string {
	switch p {
	case IoTSensor:
		return "IoT Sensor"
	case EmbeddedMCU:
		return "Embedded MCU"
	case IndustrialPLC:
		return "Industrial PLC"
	default:
		return "Unknown"
	}
}

// DefaultBaudRate returns the line rate typical for the device class.
func (p Profile) DefaultBaudRate() int {
	switch p {
	case EmbeddedMCU:
		return 9600
	case IndustrialPLC:
		return 19200
	default:
		return 115200
	}
}

// Telemetry produces one periodic unsolicited line. Values wobble with the
// cycle count so streams look alive.
func (p Profile) Telemetry(count uint32) string {
	switch p {
	case IoTSensor:
		temp := 20.0 + math.Sin(float64(count)*0.1)*5.0
		humidity := 50.0 + math.Cos(float64(count)*0.05)*10.0
		return fmt.Sprintf("{\"temperature\":%.2f,\"humidity\":%.2f,\"timestamp\":%d}\n",
			temp, humidity, count)
	case EmbeddedMCU:
		adc := uint16(512.0 + math.Sin(float64(count)*0.1)*200.0)
		return fmt.Sprintf("ADC:%d,COUNT:%d\n", adc, count)
	case IndustrialPLC:
		pressure := 100.0 + math.Sin(float64(count)*0.2)*20.0
		status := "OK"
		if count%10 >= 8 {
			status = "WARN"
		}
		return fmt.Sprintf("PRESSURE:%.2f,STATUS:%s,CYCLE:%d\n", pressure, status, count)
	default:
		return ""
	}
}

// RespondTo answers one command line. Commands are case-insensitive and may
// carry a trailing question mark.
func (p Profile) RespondTo(command string) string {
	cmd := strings.ToUpper(strings.TrimSpace(command))

	switch p {
	case IoTSensor:
		switch cmd {
		case "STATUS", "STATUS?":
			return "STATUS:OK\n"
		case "VERSION", "VERSION?":
			return "VERSION:1.0.0\n"
		case "ID", "ID?":
			return "ID:IOT-SENSOR-001\n"
		case "HELP", "HELP?":
			return "COMMANDS: STATUS, VERSION, ID, TEMP, HUMIDITY, HELP\n"
		case "TEMP", "TEMP?":
			return "TEMP:23.45\n"
		case "HUMIDITY", "HUMIDITY?":
			return "HUMIDITY:58.2\n"
		default:
			return fmt.Sprintf("ERROR:UNKNOWN_COMMAND:%s\n", cmd)
		}

	case EmbeddedMCU:
		switch cmd {
		case "STATUS", "STATUS?":
			return "OK\n"
		case "VERSION", "VERSION?":
			return "MCU v2.1.0\n"
		case "ID", "ID?":
			return "ARDUINO-MEGA-2560\n"
		case "HELP", "HELP?":
			return "AVAILABLE: STATUS, VERSION, ID, READ, RESET, HELP\n"
		case "READ", "READ?":
			return "ADC0:512,ADC1:768,ADC2:256\n"
		case "RESET":
			return "RESETTING...\nOK\n"
		default:
			return fmt.Sprintf("ERR:%s\n", cmd)
		}

	case IndustrialPLC:
		switch cmd {
		case "STATUS", "STATUS?":
			return "PLC:RUNNING,MODE:AUTO\n"
		case "VERSION", "VERSION?":
			return "PLC-5000 v3.2.1\n"
		case "ID", "ID?":
			return "PLC-5000-SN:98765\n"
		case "HELP", "HELP?":
			return "COMMANDS: STATUS, VERSION, ID, PRESSURE, STOP, START, HELP\n"
		case "PRESSURE", "PRESSURE?":
			return "PRESSURE:105.3 PSI\n"
		case "STOP":
			return "SYSTEM:STOPPED\n"
		case "START":
			return "SYSTEM:STARTED\n"
		default:
			return fmt.Sprintf("ERR:INVALID_CMD:%s\n", cmd)
		}
	}

	return ""
}
