package errcode

import (
	"fmt"
	"sync"
)

// Registry guards against two packages claiming the same code for different errors.
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

// Register records err in the global registry and returns it, so sentinels can be declared as
//
//	var ErrX = errcode.Register(errcode.New(...))
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register records err. Registering the same code with the same module:msgKey is a no-op;
// a different msgKey for a known code panics at init time.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := err.Module() + ":" + err.MsgKey()
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf("error code conflict: %d is registered as %s, cannot register as %s", err.Code(), existing, key))
	}
	r.codes[err.Code()] = key
	return err
}

// Lookup returns the module:msgKey registered for code.
func (r *Registry) Lookup(code int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.codes[code]
	return key, ok
}

// Count returns the number of registered codes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}

// LookupCode looks code up in the global registry.
func LookupCode(code int) (string, bool) {
	return globalRegistry.Lookup(code)
}
