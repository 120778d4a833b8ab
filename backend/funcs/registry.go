// Package funcs implements the function-execution backend: a registry of
// named Go functions invoked with an argument bag.
package funcs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/zcli/zkernel/backend"
)

// Func is a registered function. Implementations may block on I/O; the
// kernel does not time them out.
type Func func(ctx context.Context, args map[string]any) (any, error)

var _ backend.Invoker = (*Registry)(nil)

// Registry maps function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Func
	logger *zap.Logger
}

// NewRegistry creates an empty function registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		funcs:  make(map[string]Func),
		logger: logger,
	}
}

// Register adds a named function. Registering an existing name is an error;
// use Replace to swap an implementation.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler cannot be nil for function %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("function %q already registered", name)
	}
	r.funcs[name] = fn
	r.logger.Info("registered function", zap.String("name", name))
	return nil
}

// Replace swaps the implementation of an existing function.
func (r *Registry) Replace(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("handler cannot be nil for function %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; !exists {
		return fmt.Errorf("function %q is not registered", name)
	}
	r.funcs[name] = fn
	r.logger.Info("replaced function", zap.String("name", name))
	return nil
}

// Has reports whether a function is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs a registered function. An unknown name is a backend failure:
// routing only checked the sigil, not the registry.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return fn(ctx, args)
}
