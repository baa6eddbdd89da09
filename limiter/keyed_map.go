package limiter

import "sync"

// keyedMap is a typed sync.Map for per-key state.
type keyedMap[V any] struct {
	m sync.Map
}

func (k *keyedMap[V]) Load(key string) (V, bool) {
	v, ok := k.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// LoadOrCreate returns the stored value for key, storing create() if absent.
// create may run for a losing goroutine, but only one value is ever stored and returned.
func (k *keyedMap[V]) LoadOrCreate(key string, create func() V) V {
	if v, ok := k.m.Load(key); ok {
		return v.(V)
	}
	v, _ := k.m.LoadOrStore(key, create())
	return v.(V)
}

func (k *keyedMap[V]) Range(fn func(key string, value V) bool) {
	k.m.Range(func(key, value any) bool {
		return fn(key.(string), value.(V))
	})
}

func (k *keyedMap[V]) Len() int {
	n := 0
	k.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
