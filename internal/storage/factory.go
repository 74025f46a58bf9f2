// factory.go maps backend names (local, s3, gcs, azure) to constructors.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/platformhub/platformhub/internal/config"
)

// BackendNone disables manifest archiving
const BackendNone = "none"

// ErrDisabled is returned by NewStorage when the configured backend is "none"
var ErrDisabled = errors.New("storage disabled")

// FactoryFunc builds a backend from application configuration
type FactoryFunc func(*config.Config) (Storage, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]FactoryFunc)
)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Registered lists registered backend names in sorted order
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStorage creates the backend named by cfg.Storage.DefaultBackend
func NewStorage(cfg *config.Config) (Storage, error) {
	name := cfg.Storage.DefaultBackend
	if name == "" || name == BackendNone {
		return nil, ErrDisabled
	}

	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (registered: %v)", name, Registered())
	}
	return factory(cfg)
}
