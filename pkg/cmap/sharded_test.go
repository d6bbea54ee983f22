package cmap

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[int]()
	if m.ShardCount() != DefaultShardCount {
		t.Errorf("ShardCount() = %d, want %d", m.ShardCount(), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{1, 1},
		{8, 8},
		{64, 64},
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{7, DefaultShardCount},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("ShardCount() = %d, want %d", m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestMap_SetGet(t *testing.T) {
	m := New[string]()

	if _, ok := m.Get("missing"); ok {
		t.Error("Get() on empty map returned ok")
	}

	m.Set("a", "1")
	m.Set("b", "2")
	if v, ok := m.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Set("a", "3")
	if v, _ := m.Get("a"); v != "3" {
		t.Errorf("Get(a) after overwrite = %q, want 3", v)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestMap_ShardIndexIsStable(t *testing.T) {
	a := New[int]()
	b := New[int]()
	for _, key := range []string{"localhost", "api.example.com", "10.0.0.1"} {
		if a.shardIndex(key) != b.shardIndex(key) {
			t.Errorf("shardIndex(%q) differs between maps", key)
		}
	}
}

func TestMap_Distribution(t *testing.T) {
	m := New[int]()
	for i := 0; i < 1000; i++ {
		m.Set(fmt.Sprintf("host-%d.example.com", i), i)
	}

	used := make(map[uint32]bool)
	m.Range(func(key string, _ int) bool {
		used[m.shardIndex(key)] = true
		return true
	})
	if len(used) < m.ShardCount()/2 {
		t.Errorf("only %d of %d shards used", len(used), m.ShardCount())
	}
}

func TestMap_Range(t *testing.T) {
	m := New[int]()
	m.Set("x", 1)
	m.Set("y", 2)
	m.Set("z", 3)

	var keys []string
	m.Range(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[x y z]" {
		t.Errorf("Range() keys = %v", keys)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Range() visited %d entries after stop, want 1", visited)
	}
}

func TestMap_GetOrCreate(t *testing.T) {
	m := New[*int]()

	calls := 0
	create := func() *int {
		calls++
		v := calls
		return &v
	}

	first, existed := m.GetOrCreate("k", create)
	if existed {
		t.Error("GetOrCreate() reported existing on first call")
	}
	second, existed := m.GetOrCreate("k", create)
	if !existed {
		t.Error("GetOrCreate() reported new on second call")
	}
	if first != second {
		t.Error("GetOrCreate() returned different values for the same key")
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestMap_GetOrCreate_Concurrent(t *testing.T) {
	m := New[*int64]()
	var created atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := m.GetOrCreate("shared", func() *int64 {
				created.Add(1)
				return new(int64)
			})
			atomic.AddInt64(v, 1)
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("create called %d times, want 1", created.Load())
	}
	v, _ := m.Get("shared")
	if *v != 100 {
		t.Errorf("counter = %d, want 100", *v)
	}
}
