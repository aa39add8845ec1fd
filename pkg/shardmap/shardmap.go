// Package shardmap provides a generic concurrent map split across a fixed
// number of shards, each guarded by its own RWMutex. It is the Go analog of
// the concurrent hash map the original registries were built on: readers on
// different shards never block each other, and writers only contend with
// other writers on the same shard.
package shardmap

import "sync"

const shardCountBits = 5
const shardCount = 1 << shardCountBits // 32

// Map is a sharded map from string keys to values of type V. The zero value
// is not usable; construct with New.
type Map[V any] struct {
	shards [shardCount]*shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	sm := &Map[V]{}
	for i := range sm.shards {
		sm.shards[i] = &shard[V]{m: make(map[string]V)}
	}
	return sm
}

// fnv1a keeps the hash dependency-free and deterministic; it is only used to
// pick a shard, not for anything observable outside this package.
func fnv1a(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	return m.shards[fnv1a(key)&(shardCount-1)]
}

// Load returns the value stored for key, if any.
func (m *Map[V]) Load(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Store sets the value for key, replacing any previous value.
func (m *Map[V]) Store(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key, if present. It is a no-op otherwise.
func (m *Map[V]) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// LoadOrStore returns the existing value for key if present; otherwise it
// stores and returns the given value.
func (m *Map[V]) LoadOrStore(key string, value V) (actual V, loaded bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v, true
	}
	s.m[key] = value
	return value, false
}

// Len returns the total number of entries across all shards. It takes a
// read lock on every shard in turn; callers should not treat it as a
// consistent snapshot under concurrent writes.
func (m *Map[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Range calls f for every entry. Iteration order is unspecified and is not
// a point-in-time snapshot: entries added or removed concurrently may or
// may not be observed. f must not call back into the same Map.
func (m *Map[V]) Range(f func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.m {
			if !f(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns the keys seen by one Range pass. Like Range, it is not a
// point-in-time snapshot under concurrent writes.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Len())
	m.Range(func(k string, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
