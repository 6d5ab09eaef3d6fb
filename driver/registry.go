package driver

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// ErrUnknownDriver is reported when a driver name cannot be resolved to
// an installed backend, whatever the reason.
var ErrUnknownDriver = errors.New("webdb: unknown driver")

// Factory opens a backend for a connection target. An empty target is
// valid for backends with a transient or in-memory mode.
type Factory func(target string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Register installs a backend under a name. It is meant to be called
// from driver package init functions and panics on misuse, matching
// database/sql conventions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("webdb: Register factory is nil")
	}
	if !identifierPattern.MatchString(name) {
		panic(fmt.Sprintf("webdb: Register invalid driver name %q", name))
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("webdb: Register called twice for driver %q", name))
	}
	registry[name] = factory
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves a driver name and connects it to the target. Name
// resolution failures all collapse to ErrUnknownDriver; only once a
// driver is resolved can target errors (I/O and friends) surface, with
// their own error chains intact.
func Open(name, target string) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok || !identifierPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}

	d, err := factory(target)
	if err != nil {
		return nil, fmt.Errorf("webdb: driver %q: %w", name, err)
	}
	return d, nil
}
