package serialmux

import (
	"fmt"
	"log"
	"sync"

	"github.com/alexconrey/webmux/internal/config"
	"github.com/alexconrey/webmux/internal/metrics"
)

// ErrNotFound is returned when no session exists under the requested name.
// The capitalized message is part of the HTTP error contract and must not
// change.
var ErrNotFound = fmt.Errorf("Connection not found")

// ErrDuplicateName is returned by Add when a session already holds the name.
var ErrDuplicateName = fmt.Errorf("duplicate connection name")

// Registry is the thread-safe name-to-session mapping. Session methods are
// always invoked outside the registry lock so a slow device operation can
// never stall registry-wide lookups.
type Registry struct {
	opts []Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. The given options are applied to
// every session it opens.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Add opens a session for cfg and registers it. A disabled connection is
// skipped successfully without creating any state. A name collision fails
// with ErrDuplicateName, and a session opened during a lost race is closed
// rather than leaked.
func (r *Registry) Add(cfg config.Connection) error {
	if !cfg.Enabled {
		log.Printf("connection %s is disabled, skipping", cfg.Name)
		return nil
	}

	r.mu.RLock()
	_, exists := r.sessions[cfg.Name]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
	}

	log.Printf("adding serial connection %s at %s", cfg.Name, cfg.Port)

	sess, err := Open(cfg, r.opts...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.sessions[cfg.Name]; exists {
		r.mu.Unlock()
		sess.Close()
		return fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
	}
	r.sessions[cfg.Name] = sess
	r.mu.Unlock()

	return nil
}

// Remove stops the named session, awaits task termination, releases its
// resources, and only then drops the registry entry.
func (r *Registry) Remove(name string) error {
	r.mu.RLock()
	sess, ok := r.sessions[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	sess.Close()

	r.mu.Lock()
	delete(r.sessions, name)
	r.mu.Unlock()

	metrics.Reset(name)
	log.Printf("removed serial connection %s", name)
	return nil
}

// Get looks up a session by name without mutating the registry.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[name]
	return sess, ok
}

// List returns a snapshot of the registered names in unspecified order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	return names
}

// Shutdown drains the registry, stopping every session and awaiting its
// termination. A second call finds an empty registry and is a no-op.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	drained := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for name, sess := range drained {
		log.Printf("shutting down connection %s", name)
		sess.Close()
		metrics.Reset(name)
	}
}
