// Package cmap provides a concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards with murmur3; each
// shard has its own RWMutex, so lookups for different keys rarely contend.
//
// Usage:
//
//	m := cmap.New[*window]()
//	w, _ := m.GetOrCreate("api.example.com", newWindow)
//
// All operations are thread-safe. Read operations (Get, Range) use RLock,
// write operations (Set, GetOrCreate on a miss) use Lock.
package cmap
