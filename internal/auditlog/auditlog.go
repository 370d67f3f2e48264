// Package auditlog appends framed records of serial traffic to a per-port
// log file. Every byte block read from or written to a device becomes one
// line carrying a timestamp, direction, length, hex dump, and ASCII preview.
package auditlog

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alexconrey/webmux/internal/fsutil"
	"github.com/alexconrey/webmux/internal/timeutil"
)

// ErrLoggerClosed is returned by Record after Close.
var ErrLoggerClosed = errors.New("audit logger closed")

// Direction labels which way the bytes flowed relative to webmux.
type Direction string

const (
	// RX marks bytes read from the serial device.
	RX Direction = "RX"
	// TX marks bytes written to the serial device.
	TX Direction = "TX"
)

// Logger writes audit records for one connection. A single lock serializes
// RX and TX records so lines never interleave; the lock is intentionally held
// across the whole write so each record reaches the file atomically.
type Logger struct {
	mu     sync.Mutex
	file   io.WriteCloser
	name   string
	clock  timeutil.Clock
	closed bool
}

// New opens (or creates) the audit log at path in append mode, creating any
// missing parent directories. The connection name appears in every record.
func New(fsys fsutil.FileSystem, path, name string) (*Logger, error) {
	return NewWithClock(fsys, path, name, timeutil.RealClock{})
}

// NewWithClock is New with an injected clock for deterministic timestamps.
func NewWithClock(fsys fsutil.FileSystem, path, name string, clock timeutil.Clock) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	file, err := fsys.OpenAppend(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &Logger{file: file, name: name, clock: clock}, nil
}

// Record appends one line for the given byte block. The line is written in
// full before Record returns.
func (l *Logger) Record(direction Direction, data []byte) error {
	line := formatRecord(l.clock.Now(), l.name, direction, data)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoggerClosed
	}
	if _, err := io.WriteString(l.file, line); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Close releases the underlying file. Subsequent Records fail.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

func formatRecord(ts time.Time, name string, direction Direction, data []byte) string {
	return fmt.Sprintf("[%s] %s | %s | %d bytes | HEX: %s | ASCII: %s\n",
		ts.Format("2006-01-02 15:04:05.000"),
		name,
		direction,
		len(data),
		hexDump(data),
		asciiPreview(data),
	)
}

// hexDump renders bytes as space-separated lowercase hex pairs.
func hexDump(data []byte) string {
	var b strings.Builder
	b.Grow(len(data) * 3)
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

// asciiPreview renders printable ASCII (including space) verbatim and
// everything else as '.'.
func asciiPreview(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
