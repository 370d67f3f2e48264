package serialmux

import (
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestTestablePortReadBlocksUntilData(t *testing.T) {
	p := NewTestablePort()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := p.Read(buf)
		if err != nil {
			t.Errorf("Read failed: %v", err)
		}
		got <- buf[:n]
	}()

	// The reader is parked before data arrives.
	select {
	case data := <-got:
		t.Fatalf("Read returned %q before any data was queued", data)
	case <-time.After(20 * time.Millisecond):
	}

	p.QueueRead([]byte("ping"))
	select {
	case data := <-got:
		if string(data) != "ping" {
			t.Errorf("Read returned %q, want ping", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read never returned after data was queued")
	}
}

func TestTestablePortQueuedEOF(t *testing.T) {
	p := NewTestablePort()
	p.QueueRead([]byte("tail"))
	p.QueueEOF()

	buf := make([]byte, 16)
	n, err := p.Read(buf)
	if err != nil || string(buf[:n]) != "tail" {
		t.Fatalf("first Read = (%q, %v), want (tail, nil)", buf[:n], err)
	}

	n, err = p.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("Read after EOF = (%d, %v), want (0, nil)", n, err)
	}
}

func TestTestablePortQueuedReadError(t *testing.T) {
	p := NewTestablePort()
	wantErr := errors.New("bus fault")
	p.QueueReadError(wantErr)

	buf := make([]byte, 16)
	if _, err := p.Read(buf); err != wantErr {
		t.Errorf("Read = %v, want %v", err, wantErr)
	}
}

func TestTestablePortCloseWakesReader(t *testing.T) {
	p := NewTestablePort()

	done := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Read on a closed port returned no error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the blocked reader")
	}
}

func TestTestablePortWriteCapture(t *testing.T) {
	p := NewTestablePort()

	if _, err := p.Write([]byte("ab")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := p.Write([]byte("cd")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if string(p.Written()) != "abcd" {
		t.Errorf("Written = %q, want abcd", p.Written())
	}
	if p.WriteCalls() != 2 {
		t.Errorf("WriteCalls = %d, want 2", p.WriteCalls())
	}

	p.SetWriteError(errors.New("device busy"))
	if _, err := p.Write([]byte("ef")); err == nil {
		t.Error("Write did not return the queued error")
	}
	// The error fires once; writes then resume.
	if _, err := p.Write([]byte("gh")); err != nil {
		t.Errorf("Write after queued error failed: %v", err)
	}
	if string(p.Written()) != "abcdgh" {
		t.Errorf("Written = %q, want abcdgh", p.Written())
	}
}

func TestMockPortFactoryRecordsCalls(t *testing.T) {
	f := NewMockPortFactory(nil)
	mode := &serial.Mode{BaudRate: 19200}

	port, err := f.Open("/dev/ttyS1", mode)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if port == nil {
		t.Fatal("Open returned a nil port")
	}

	call := f.LastCall()
	if call == nil {
		t.Fatal("LastCall returned nil")
	}
	if call.Path != "/dev/ttyS1" || call.Mode.BaudRate != 19200 {
		t.Errorf("recorded call = %+v, want /dev/ttyS1 at 19200", call)
	}

	if f.PortFor("/dev/ttyS1") != port {
		t.Error("PortFor did not return the minted port")
	}
}

func TestMockPortFactoryFixedPortAndError(t *testing.T) {
	fixed := NewTestablePort()
	f := NewMockPortFactory(fixed)

	port, err := f.Open("/dev/ttyS2", &serial.Mode{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if port != DevicePort(fixed) {
		t.Error("Open did not return the fixed port")
	}

	f.Err = errors.New("no such device")
	if _, err := f.Open("/dev/ttyS2", &serial.Mode{}); err == nil {
		t.Error("Open did not return the configured error")
	}
}
