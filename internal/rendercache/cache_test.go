package rendercache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livemark/internal/mdtree"
)

type fixedConfig Fingerprint

func (f fixedConfig) Fingerprint() Fingerprint { return Fingerprint(f) }

func para(s string) mdtree.Node {
	return mdtree.NewParagraph(mdtree.NewText(s, mdtree.BreakNone))
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		c, err := New[string](capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, c)
	}
}

func TestCache_GetSet(t *testing.T) {
	c, err := New[string](4)
	require.NoError(t, err)
	cfg := fixedConfig(1)

	_, ok := c.Get(para("a"), cfg)
	assert.False(t, ok)

	c.Set("<p>a</p>", para("a"), cfg)
	got, ok := c.Get(para("a"), cfg)
	require.True(t, ok)
	assert.Equal(t, "<p>a</p>", got)

	_, ok = c.Get(para("a"), fixedConfig(2))
	assert.False(t, ok, "artifacts are per configuration")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 3
	c, err := New[int](capacity)
	require.NoError(t, err)
	cfg := fixedConfig(0)

	for i := 0; i <= capacity; i++ {
		c.Set(i, para(fmt.Sprint(i)), cfg)
		assert.LessOrEqual(t, c.Len(), capacity)
	}

	_, ok := c.Get(para("0"), cfg)
	assert.False(t, ok, "first inserted entry should be evicted")
	for i := 1; i <= capacity; i++ {
		v, ok := c.Get(para(fmt.Sprint(i)), cfg)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)
	cfg := fixedConfig(0)

	c.Set(1, para("1"), cfg)
	c.Set(2, para("2"), cfg)
	_, ok := c.Get(para("1"), cfg)
	require.True(t, ok)

	c.Set(3, para("3"), cfg)
	_, ok = c.Get(para("2"), cfg)
	assert.False(t, ok)
	_, ok = c.Get(para("1"), cfg)
	assert.True(t, ok)
}

func TestCache_CapacityOne(t *testing.T) {
	c, err := New[string](1)
	require.NoError(t, err)
	cfg := fixedConfig(0)

	c.Set("a", para("a"), cfg)
	c.Set("b", para("b"), cfg)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(para("a"), cfg)
	assert.False(t, ok)
	got, ok := c.Get(para("b"), cfg)
	assert.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)
	key := Key{Hash: 1, Config: 1}

	c.Store(key, "old")
	c.Store(key, "new")

	got, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestCache_Clear(t *testing.T) {
	c, err := New[string](1)
	require.NoError(t, err)
	cfg := fixedConfig(0)

	c.Set("a", para("a"), cfg)
	c.Set("b", para("b"), cfg)
	c.Get(para("b"), cfg)
	c.Get(para("a"), cfg)

	c.Clear()
	assert.Equal(t, Stats{Capacity: 1}, c.Stats())
	assert.Equal(t, 0.0, c.HitRate())
	assert.False(t, c.Contains(KeyFor(para("b"), cfg)))
}

func TestCache_HitRate(t *testing.T) {
	c, err := New[string](8)
	require.NoError(t, err)
	cfg := fixedConfig(0)
	assert.Equal(t, 0.0, c.HitRate())

	c.Set("a", para("a"), cfg)
	c.Get(para("a"), cfg)
	c.Get(para("a"), cfg)
	c.Get(para("a"), cfg)
	c.Get(para("missing"), cfg)

	assert.InDelta(t, 0.75, c.HitRate(), 1e-9)
	assert.InDelta(t, 0.75, c.Stats().HitRate, 1e-9)
}

func TestCache_Concurrent(t *testing.T) {
	const capacity = 16
	c, err := New[int](capacity)
	require.NoError(t, err)
	cfg := fixedConfig(0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := para(fmt.Sprint(g*1000 + i%40))
				if _, ok := c.Get(n, cfg); !ok {
					c.Set(i, n, cfg)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, capacity)
	assert.Equal(t, int64(8*200), stats.Hits+stats.Misses)
	assert.GreaterOrEqual(t, stats.HitRate, 0.0)
	assert.LessOrEqual(t, stats.HitRate, 1.0)
}
