package shardmap_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxwell-dev/maxwell-master/pkg/shardmap"
)

func TestStoreLoadDelete(t *testing.T) {
	m := shardmap.New[int]()

	_, ok := m.Load("a")
	require.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Load("a")
	require.False(t, ok)
}

func TestLoadOrStore(t *testing.T) {
	m := shardmap.New[string]()

	v, loaded := m.LoadOrStore("k", "first")
	require.False(t, loaded)
	require.Equal(t, "first", v)

	v, loaded = m.LoadOrStore("k", "second")
	require.True(t, loaded)
	require.Equal(t, "first", v)
}

func TestLenAndRange(t *testing.T) {
	m := shardmap.New[int]()
	for i := 0; i < 100; i++ {
		m.Store(strconv.Itoa(i), i)
	}
	require.Equal(t, 100, m.Len())

	seen := make(map[string]bool)
	m.Range(func(k string, v int) bool {
		seen[k] = true
		return true
	})
	require.Len(t, seen, 100)
}

func TestConcurrentAccessDoesNotRace(t *testing.T) {
	m := shardmap.New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i % 8)
			m.Store(key, i)
			m.Load(key)
			m.Len()
		}(i)
	}
	wg.Wait()
}
