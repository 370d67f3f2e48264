// Package serialmux multiplexes serial devices to many concurrent clients.
// Each opened device is owned by a Session running a reader and a writer
// goroutine; bytes read from the device fan out losslessly to the audit log
// and lossily to any number of broadcast subscribers, while bytes from
// clients funnel through a bounded write mailbox.
package serialmux

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alexconrey/webmux/internal/auditlog"
	"github.com/alexconrey/webmux/internal/config"
	"github.com/alexconrey/webmux/internal/fsutil"
	"github.com/alexconrey/webmux/internal/metrics"
	"github.com/alexconrey/webmux/internal/timeutil"
)

const (
	// defaultMailboxCapacity bounds the queue of outgoing byte blocks.
	// Senders block (up to their context deadline) when it is full.
	defaultMailboxCapacity = 100

	// defaultBroadcastCapacity is the per-subscriber ring size. A
	// subscriber more than this many blocks behind starts losing the
	// oldest ones.
	defaultBroadcastCapacity = 1000

	// readBufferSize is the fixed buffer handed to each device read; one
	// read produces at most one byte block.
	readBufferSize = 1024
)

// ErrMailboxClosed is returned by Send once the session has shut down.
var ErrMailboxClosed = errors.New("write mailbox closed")

// ErrShortWrite is returned when the device accepts fewer bytes than asked
// without reporting an error.
var ErrShortWrite = errors.New("short write to serial port")

// StatsSnapshot is a consistent view of a session's counters, shaped for the
// stats API response.
type StatsSnapshot struct {
	Name          string `json:"name"`
	Port          string `json:"port"`
	BytesReceived uint64 `json:"bytes_received"`
	BytesSent     uint64 `json:"bytes_sent"`
	IsConnected   bool   `json:"is_connected"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

type sessionStats struct {
	bytesReceived uint64
	bytesSent     uint64
	connected     bool
	startTime     time.Time
}

type options struct {
	factory           PortFactory
	fs                fsutil.FileSystem
	clock             timeutil.Clock
	mailboxCapacity   int
	broadcastCapacity int
}

// Option customizes session construction. Production callers use the
// defaults; tests inject fakes.
type Option func(*options)

// WithPortFactory replaces the device opener.
func WithPortFactory(f PortFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithFileSystem replaces the filesystem backing the audit log.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithClock replaces the clock used for uptime accounting.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMailboxCapacity overrides the write mailbox bound.
func WithMailboxCapacity(n int) Option {
	return func(o *options) { o.mailboxCapacity = n }
}

// WithBroadcastCapacity overrides the per-subscriber ring size.
func WithBroadcastCapacity(n int) Option {
	return func(o *options) { o.broadcastCapacity = n }
}

func defaultOptions() options {
	return options{
		factory:           SystemPortFactory{},
		fs:                fsutil.OSFileSystem{},
		clock:             timeutil.RealClock{},
		mailboxCapacity:   defaultMailboxCapacity,
		broadcastCapacity: defaultBroadcastCapacity,
	}
}

// Session owns one opened serial device. The reader goroutine is the sole
// caller of device reads and the writer goroutine the sole caller of device
// writes; everything else talks to the session through the mailbox, the
// broadcast, or the stats snapshot.
type Session struct {
	cfg   config.Connection
	port  DevicePort
	audit *auditlog.Logger // nil when audit logging is disabled
	clock timeutil.Clock

	writeCh chan []byte
	bcast   *broadcaster

	statsMu sync.RWMutex
	stats   sessionStats

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Open opens the device described by cfg with its line parameters, opens the
// audit log when enabled, and starts the reader and writer goroutines. On
// failure no session state persists: an opened device is closed again before
// the error is returned.
func Open(cfg config.Connection, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := ModeFor(cfg)
	if err != nil {
		return nil, err
	}

	port, err := o.factory.Open(cfg.Port, mode)
	if err != nil {
		return nil, err
	}

	var audit *auditlog.Logger
	if cfg.Logging.Enabled {
		audit, err = auditlog.New(o.fs, cfg.Logging.Path, cfg.Name)
		if err != nil {
			port.Close()
			return nil, err
		}
	}

	s := &Session{
		cfg:     cfg,
		port:    port,
		audit:   audit,
		clock:   o.clock,
		writeCh: make(chan []byte, o.mailboxCapacity),
		bcast:   newBroadcaster(cfg.Name, o.broadcastCapacity),
		stats: sessionStats{
			connected: true,
			startTime: o.clock.Now(),
		},
		done: make(chan struct{}),
	}

	log.Printf("opened serial port %s for connection %s", cfg.Port, cfg.Name)
	metrics.SetConnected(cfg.Name, true)

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()

	return s, nil
}

// Config returns the immutable descriptor the session was opened from.
func (s *Session) Config() config.Connection {
	return s.cfg
}

// Send enqueues one byte block on the write mailbox. A full mailbox applies
// backpressure: the call blocks until space frees up, the context expires,
// or the session shuts down.
func (s *Session) Send(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case s.writeCh <- data:
		return nil
	case <-s.done:
		return ErrMailboxClosed
	case <-ctx.Done():
		return fmt.Errorf("failed to send data: %w", ctx.Err())
	}
}

// Subscribe attaches a new broadcast subscriber. It observes only blocks
// read after the subscription; history is never replayed.
func (s *Session) Subscribe() *Subscriber {
	return s.bcast.subscribe()
}

// Stats returns a consistent snapshot of the session counters.
func (s *Session) Stats() StatsSnapshot {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return StatsSnapshot{
		Name:          s.cfg.Name,
		Port:          s.cfg.Port,
		BytesReceived: s.stats.bytesReceived,
		BytesSent:     s.stats.bytesSent,
		IsConnected:   s.stats.connected,
		UptimeSeconds: uint64(s.clock.Since(s.stats.startTime) / time.Second),
	}
}

// Stop triggers shutdown and returns immediately. Closing the device is what
// unblocks the reader goroutine's pending blocking read. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if err := s.port.Close(); err != nil {
			log.Printf("failed to close serial port %s: %v", s.cfg.Port, err)
		}
	})
}

// Wait blocks until both session goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops the session, awaits goroutine termination, and releases the
// broadcast and audit log. Safe to call more than once.
func (s *Session) Close() {
	s.Stop()
	s.wg.Wait()
	s.bcast.close()
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			log.Printf("failed to close audit log for %s: %v", s.cfg.Name, err)
		}
	}
}

// readLoop pulls byte blocks off the device and fans them out: stats first,
// then the audit log, then the broadcast. A zero-byte read is a remote
// close; any read error is terminal for the session's connected state.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer s.setDisconnected()

	blocks := make(chan []byte)
	readErrs := make(chan error, 1)

	// The blocking device read lives in its own goroutine so the outer
	// loop stays responsive to shutdown. Stop() closes the device, which
	// errors out any pending read and ends this goroutine.
	go func() {
		defer close(blocks)
		buf := make([]byte, readBufferSize)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				block := make([]byte, n)
				copy(block, buf[:n])
				select {
				case blocks <- block:
				case <-s.done:
					return
				}
			}
			if err != nil {
				select {
				case readErrs <- err:
				case <-s.done:
				}
				return
			}
			if n == 0 {
				// A successful zero-byte read means the remote
				// side closed the line.
				return
			}
		}
	}()

	for {
		select {
		case <-s.done:
			return

		case err := <-readErrs:
			log.Printf("error reading from serial port %s: %v", s.cfg.Port, err)
			return

		case block, ok := <-blocks:
			if !ok {
				log.Printf("serial port %s closed", s.cfg.Port)
				return
			}
			s.recordReceived(block)
		}
	}
}

func (s *Session) recordReceived(block []byte) {
	s.statsMu.Lock()
	s.stats.bytesReceived += uint64(len(block))
	s.statsMu.Unlock()
	metrics.AddBytesReceived(s.cfg.Name, len(block))

	if s.audit != nil {
		if err := s.audit.Record(auditlog.RX, block); err != nil {
			log.Printf("failed to log received data for %s: %v", s.cfg.Name, err)
		}
	}

	if delivered := s.bcast.publish(block); delivered == 0 {
		log.Printf("no subscribers received %d bytes from %s", len(block), s.cfg.Name)
	}
}

// writeLoop drains the mailbox onto the device in FIFO order. A failed
// write is logged and skipped rather than tearing the session down: writes
// can fail transiently and the caller may retry, whereas a dead read side
// already signals disconnection authoritatively.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case block := <-s.writeCh:
			s.writeBlock(block)
		case <-s.done:
			// Drain whatever was queued before shutdown, then exit.
			for {
				select {
				case block := <-s.writeCh:
					s.writeBlock(block)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) writeBlock(block []byte) {
	n, err := s.port.Write(block)
	if err == nil && n != len(block) {
		err = ErrShortWrite
	}
	if err != nil {
		log.Printf("error writing to serial port %s: %v", s.cfg.Port, err)
		return
	}

	s.statsMu.Lock()
	s.stats.bytesSent += uint64(len(block))
	s.statsMu.Unlock()
	metrics.AddBytesSent(s.cfg.Name, len(block))

	if s.audit != nil {
		if err := s.audit.Record(auditlog.TX, block); err != nil {
			log.Printf("failed to log sent data for %s: %v", s.cfg.Name, err)
		}
	}
}

func (s *Session) setDisconnected() {
	s.statsMu.Lock()
	s.stats.connected = false
	s.statsMu.Unlock()
	metrics.SetConnected(s.cfg.Name, false)
}
