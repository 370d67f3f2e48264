// Package fsutil provides filesystem abstractions for testability.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSystem abstracts the filesystem operations webmux performs: append-mode
// log writing and static file reads. Use OSFileSystem for production and
// MemoryFileSystem for testing.
type FileSystem interface {
	// OpenAppend opens the named file for appending, creating it if needed.
	OpenAppend(name string) (io.WriteCloser, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// OpenAppend opens the named file in append mode, creating it if needed.
func (OSFileSystem) OpenAppend(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// MkdirAll creates a directory path.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem provides an in-memory filesystem for testing. Append
// handles write through to the shared store so concurrent readers observe
// every completed write.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// OpenAppend opens an append handle on the named file, creating it if needed.
func (m *MemoryFileSystem) OpenAppend(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; !ok {
		m.files[name] = []byte{}
	}

	return &memAppendWriter{fs: m, name: name}, nil
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// MkdirAll creates directories, including parents.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.dirs[path] = true
	for p := filepath.Dir(path); p != "." && p != "/" && p != path; p = filepath.Dir(p) {
		m.dirs[p] = true
	}

	return nil
}

// Exists checks if a file or directory exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		return true
	}
	return m.dirs[name]
}

// WriteFile replaces a file's contents. Test setup helper.
func (m *MemoryFileSystem) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.files[filepath.Clean(name)] = dataCopy
}

// HasDir reports whether MkdirAll created the given directory.
func (m *MemoryFileSystem) HasDir(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[filepath.Clean(path)]
}

// memAppendWriter appends to the backing store on every Write call.
type memAppendWriter struct {
	fs     *MemoryFileSystem
	name   string
	closed bool
	mu     sync.Mutex
}

func (w *memAppendWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, fs.ErrClosed
	}

	w.fs.mu.Lock()
	w.fs.files[w.name] = append(w.fs.files[w.name], p...)
	w.fs.mu.Unlock()
	return len(p), nil
}

func (w *memAppendWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Lines splits file contents into non-empty lines. Shared by audit log tests.
func Lines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
