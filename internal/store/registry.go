package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-registry/internal/config"
)

// Factory opens a backend from configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Backend, error)

var (
	backends   = make(map[string]Factory)
	backendsMu sync.RWMutex
)

// Register makes a backend available under name. It is called from the cmd
// package so backend packages do not import each other.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends returns the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	backendsMu.RLock()
	f, ok := backends[cfg.Store.Backend]
	backendsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (available: %v)", cfg.Store.Backend, Backends())
	}

	b, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	return b, nil
}
