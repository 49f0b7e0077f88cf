package gateway

import (
	"fmt"
	"sync"

	"github.com/coursehub/paygate/infra/config"
)

// Registry manages gateway driver factories and the configured instances
// built from them. Instances are memoized per (driver, environment) pair:
// credentials differ between environments, so the pairs never share an
// instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]PaymentGateway
}

// NewRegistry creates a new driver registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]PaymentGateway),
	}
}

// Register adds a gateway driver factory to the registry
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// DriverNames returns the names of all registered drivers
func (r *Registry) DriverNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Resolve returns the configured gateway instance for a driver in the given
// environment, constructing and caching it on first use. A failed
// construction is never cached, and concurrent first resolutions of the same
// key observe a single instance.
func (r *Registry) Resolve(name string, env config.Environment) (PaymentGateway, error) {
	key := instanceKey(name, env)

	r.mu.RLock()
	instance, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		return instance, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have finished
	// constructing this key while we waited.
	if instance, ok := r.instances[key]; ok {
		return instance, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, NewConfigurationError(name, fmt.Sprintf("unsupported payment driver [%s]: no driver registered under that name", name))
	}

	cfg, err := config.Driver(name, env)
	if err != nil {
		return nil, NewConfigurationError(name, err.Error())
	}

	instance = factory()
	if err := instance.Initialize(cfg); err != nil {
		return nil, NewConfigurationError(name, fmt.Sprintf("driver initialization failed in environment [%s]: %v", env, err))
	}

	r.instances[key] = instance
	return instance, nil
}

func instanceKey(name string, env config.Environment) string {
	return name + "_" + string(env)
}

// DefaultRegistry is the global default driver registry
var DefaultRegistry = NewRegistry()

// Register registers a driver factory with the default registry
func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}

// Resolve resolves a configured driver instance from the default registry
func Resolve(name string, env config.Environment) (PaymentGateway, error) {
	return DefaultRegistry.Resolve(name, env)
}
