package serialmux

import (
	"errors"
	"sync"

	"go.bug.st/serial"
)

// TestablePort implements DevicePort with configurable behaviour for
// testing. Reads block until data is added or the port is closed, which
// mirrors how a real serial device read behaves between byte bursts.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  []byte
	writeBuf []byte

	readErr  error // returned by the next Read once the buffer is drained
	writeErr error // returned by the next Write
	closeErr error

	eofPending bool // deliver one zero-byte read once the buffer drains
	closed     bool

	writeCalls int
}

// NewTestablePort creates a blocking in-memory device.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read returns buffered data, blocking until data arrives, an error or EOF
// is queued, or the port closes.
func (p *TestablePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.readBuf) == 0 && p.readErr == nil && !p.eofPending && !p.closed {
		p.readCond.Wait()
	}

	if len(p.readBuf) > 0 {
		n := copy(buf, p.readBuf)
		p.readBuf = p.readBuf[n:]
		return n, nil
	}
	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		return 0, err
	}
	if p.eofPending {
		p.eofPending = false
		return 0, nil
	}
	return 0, errors.New("serial port closed")
}

// Write appends to the captured output unless a write error is queued.
func (p *TestablePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeCalls++
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.writeErr != nil {
		err := p.writeErr
		p.writeErr = nil
		return 0, err
	}
	p.writeBuf = append(p.writeBuf, data...)
	return len(data), nil
}

// Close marks the port closed and wakes any blocked reader.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return p.closeErr
}

// QueueRead makes data available to subsequent Read calls.
func (p *TestablePort) QueueRead(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf = append(p.readBuf, data...)
	p.readCond.Broadcast()
}

// QueueReadError makes the next drained Read return err.
func (p *TestablePort) QueueReadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
	p.readCond.Broadcast()
}

// QueueEOF makes the next drained Read return (0, nil), the remote-close
// signal.
func (p *TestablePort) QueueEOF() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eofPending = true
	p.readCond.Broadcast()
}

// SetWriteError makes the next Write fail with err.
func (p *TestablePort) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// Written returns a copy of everything written to the port.
func (p *TestablePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.writeBuf))
	copy(out, p.writeBuf)
	return out
}

// WriteCalls reports the number of Write invocations.
func (p *TestablePort) WriteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeCalls
}

// Closed reports whether Close was called.
func (p *TestablePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MockPortFactory implements PortFactory for testing.
type MockPortFactory struct {
	mu sync.Mutex

	// Port is returned from Open. When nil a fresh TestablePort is
	// created per call.
	Port DevicePort

	// Err is returned by Open if set.
	Err error

	// OpenCalls records every Open invocation.
	OpenCalls []MockOpenCall

	// opened holds ports created on demand, keyed by path.
	opened map[string]*TestablePort
}

// MockOpenCall records the arguments of one Open call.
type MockOpenCall struct {
	Path string
	Mode *serial.Mode
}

// NewMockPortFactory creates a factory returning the given port. Pass nil to
// have the factory mint a TestablePort per opened path.
func NewMockPortFactory(port DevicePort) *MockPortFactory {
	return &MockPortFactory{Port: port, opened: make(map[string]*TestablePort)}
}

// Open returns the configured port or error, recording the call.
func (f *MockPortFactory) Open(path string, mode *serial.Mode) (DevicePort, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Mode: mode})

	if f.Err != nil {
		return nil, f.Err
	}
	if f.Port != nil {
		return f.Port, nil
	}

	p := NewTestablePort()
	f.opened[path] = p
	return p, nil
}

// PortFor returns the auto-minted port for path, if any.
func (f *MockPortFactory) PortFor(path string) *TestablePort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[path]
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
