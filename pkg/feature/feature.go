// Package feature provides the capability flags the notification hub consults
// at runtime. Flags are injected at construction time instead of read from
// process-wide state, so tests can vary them per hub instance.
package feature

import (
	"context"
	"errors"
	"sync"
)

// Flags known to the notification engine.
const (
	// FlagWebPush gates the web_push delivery channel globally. When
	// disabled the hub drops web_push from every requested channel list.
	FlagWebPush = "notify.webpush"
)

// ErrFlagNotFound is returned when a flag has never been registered.
var ErrFlagNotFound = errors.New("feature flag not found")

// Provider answers whether a named capability is enabled.
type Provider interface {
	// IsEnabled reports the state of a flag. Unknown flags return false
	// and ErrFlagNotFound.
	IsEnabled(ctx context.Context, flag string) (bool, error)
}

// MemoryProvider is a mutable in-memory Provider, safe for concurrent use.
type MemoryProvider struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryProvider creates a provider pre-populated with the given flags.
func NewMemoryProvider(flags map[string]bool) *MemoryProvider {
	m := &MemoryProvider{flags: make(map[string]bool, len(flags))}
	for name, enabled := range flags {
		m.flags[name] = enabled
	}
	return m
}

func (m *MemoryProvider) IsEnabled(ctx context.Context, flag string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enabled, ok := m.flags[flag]
	if !ok {
		return false, ErrFlagNotFound
	}
	return enabled, nil
}

// Set creates or updates a flag.
func (m *MemoryProvider) Set(flag string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag] = enabled
}

// Delete removes a flag.
func (m *MemoryProvider) Delete(flag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, flag)
}
