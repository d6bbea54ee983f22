// Package cmap provides a concurrent-safe sharded map keyed by strings.
package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration.
// Note: This acquires locks shard by shard, so the view may not be consistent.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !fn(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}

// GetOrCreate returns the value stored under key, calling create to build
// and store it when absent. create runs under the shard lock, at most once
// per key. The boolean reports whether the value already existed.
func (m *Map[V]) GetOrCreate(key string, create func() V) (V, bool) {
	shard := m.getShard(key)

	shard.mu.RLock()
	if existing, ok := shard.items[key]; ok {
		shard.mu.RUnlock()
		return existing, true
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.items[key]; ok {
		return existing, true
	}

	value := create()
	shard.items[key] = value
	return value, false
}
