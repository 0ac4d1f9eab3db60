package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func key(shape string) Key {
	return Key{Backend: "memory", Kind: KindFilter, Shape: []byte(shape), SchemaVersion: "v1"}
}

func TestCache_HitOnEqualKey(t *testing.T) {
	c := New(4)
	c.Put(key(`{"bar":"a"}`), "artifact")

	got, ok := c.Get(key(`{"bar":"a"}`))
	assert.True(t, ok)
	assert.Equal(t, "artifact", got)
	assert.Equal(t, Stats{Hits: 1, Entries: 1}, c.Stats())
}

func TestCache_MissOnAnyComponent(t *testing.T) {
	c := New(4)
	c.Put(key(`{"bar":"a"}`), "artifact")

	tests := []struct {
		name string
		key  Key
	}{
		{name: "schema version", key: Key{Backend: "memory", Kind: KindFilter, Shape: []byte(`{"bar":"a"}`), SchemaVersion: "v2"}},
		{name: "backend", key: Key{Backend: "sqlite", Kind: KindFilter, Shape: []byte(`{"bar":"a"}`), SchemaVersion: "v1"}},
		{name: "kind", key: Key{Backend: "memory", Kind: KindOrder, Shape: []byte(`{"bar":"a"}`), SchemaVersion: "v1"}},
		{name: "shape", key: key(`{"bar":"b"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Get(tt.key)
			assert.False(t, ok)
		})
	}
}

func TestKey_SumSeparatesFields(t *testing.T) {
	a := Key{Backend: "ab", Kind: KindFilter, Shape: []byte("c"), SchemaVersion: "v"}
	b := Key{Backend: "a", Kind: KindFilter, Shape: []byte("bc"), SchemaVersion: "v"}
	assert.NotEqual(t, a.Sum(), b.Sum())
}

func TestCache_EvictsAllWhenFull(t *testing.T) {
	c := New(2)
	c.Put(key("1"), 1)
	c.Put(key("2"), 2)
	c.Put(key("3"), 3)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(key("1"))
	assert.False(t, ok)
	got, ok := c.Get(key("3"))
	assert.True(t, ok)
	assert.Equal(t, 3, got)
	assert.Equal(t, uint64(1), c.Stats().Resets)
}

func TestCache_PutCopiesShape(t *testing.T) {
	c := New(2)
	shape := []byte("abc")
	c.Put(Key{Backend: "memory", Kind: KindFilter, Shape: shape}, 1)
	shape[0] = 'x'

	_, ok := c.Get(Key{Backend: "memory", Kind: KindFilter, Shape: []byte("abc")})
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New(0)
	c.Put(key("1"), 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New(8)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			k := key(fmt.Sprint(n % 10))
			if _, ok := c.Get(k); !ok {
				c.Put(k, n)
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, uint64(64), stats.Hits+stats.Misses)
	assert.LessOrEqual(t, stats.Entries, 8)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "filter", KindFilter.String())
	assert.Equal(t, "order", KindOrder.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
