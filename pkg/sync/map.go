// Package sync provides small typed wrappers over the standard library's
// concurrency primitives.
package sync

import "sync"

// TypedSyncMap wraps sync.Map with type-safe accessors.
type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

func (m *TypedSyncMap[K, V]) Store(key K, value V) { m.m.Store(key, value) }

func (m *TypedSyncMap[K, V]) Delete(key K) { m.m.Delete(key) }

func (m *TypedSyncMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return *new(V), false
	}

	vv, ok := v.(V)
	if !ok {
		return *new(V), false
	}

	return vv, true
}

func (m *TypedSyncMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.m.LoadOrStore(key, value)
	if av, ok := actual.(V); ok {
		return av, loaded
	}

	return *new(V), loaded
}
