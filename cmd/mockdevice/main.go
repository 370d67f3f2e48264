// Command mockdevice simulates a serial device for testing webmux without
// hardware. Pair it with a virtual serial port, for example:
//
//	socat -d -d pty,raw,echo=0 pty,raw,echo=0
//
// then point mockdevice at one pty and a webmux connection at the other.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/alexconrey/webmux/internal/mockdevice"
)

var (
	baud      = flag.Int("baud", 0, "baud rate (0 means the profile default)")
	telemetry = flag.Int("telemetry", 5, "telemetry interval in seconds (0 disables)")
	echo      = flag.Bool("echo", false, "echo received bytes back")
	verbose   = flag.Bool("verbose", false, "print all traffic")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <port> <device-type>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Device types: iot/sensor, mcu/embedded, plc/industrial")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	portName := flag.Arg(0)
	profile, ok := mockdevice.ProfileFromString(flag.Arg(1))
	if !ok {
		log.Fatalf("invalid device type %q: expected iot, sensor, mcu, embedded, plc, or industrial", flag.Arg(1))
	}

	rate := *baud
	if rate == 0 {
		rate = profile.DefaultBaudRate()
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: rate})
	if err != nil {
		log.Fatalf("failed to open serial port %s: %v", portName, err)
	}
	defer port.Close()

	// A short read timeout keeps the loop responsive for telemetry.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		log.Fatalf("failed to set read timeout: %v", err)
	}

	log.Printf("simulating %s on %s at %d baud", profile.Name(), portName, rate)

	buf := make([]byte, 256)
	var cycle uint32
	lastTelemetry := time.Now()
	interval := time.Duration(*telemetry) * time.Second

	for {
		if interval > 0 && time.Since(lastTelemetry) >= interval {
			line := profile.Telemetry(cycle)
			if *verbose {
				log.Printf("telemetry: %s", strings.TrimSpace(line))
			}
			if _, err := port.Write([]byte(line)); err != nil {
				log.Printf("failed to send telemetry: %v", err)
			}
			cycle++
			lastTelemetry = time.Now()
		}

		n, err := port.Read(buf)
		if err != nil {
			log.Printf("failed to read from serial port: %v", err)
			return
		}
		if n == 0 {
			// Read timeout, nothing pending.
			continue
		}

		received := string(buf[:n])
		if *verbose {
			log.Printf("received %d bytes: %q", n, strings.TrimSpace(received))
		}

		if *echo {
			if _, err := port.Write(buf[:n]); err != nil {
				log.Printf("failed to echo data: %v", err)
			}
		}

		for _, line := range strings.Split(received, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			response := profile.RespondTo(line)
			if !*verbose {
				log.Printf("%s -> %s", strings.TrimSpace(line), strings.TrimSpace(response))
			}
			if _, err := port.Write([]byte(response)); err != nil {
				log.Printf("failed to send response: %v", err)
			}
		}
	}
}
