package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute, 0, 10)
	defer c.Stop()

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiration(t *testing.T) {
	c := NewCache(time.Minute, 0, 10)
	defer c.Stop()

	c.SetWithExpiration("short", "x", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewCache(0, 0, 2)
	defer c.Stop()

	var evicted []string
	c.SetOnEvicted(func(k string, _ interface{}) { evicted = append(evicted, k) })

	c.Set("first", 1)
	time.Sleep(time.Millisecond)
	c.Set("second", 2)
	time.Sleep(time.Millisecond)
	c.Set("third", 3)

	assert.Equal(t, 2, c.Count())
	assert.Equal(t, []string{"first"}, evicted)
	_, ok := c.Get("third")
	assert.True(t, ok)
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := NewCache(0, 0, 1)
	defer c.Stop()

	c.Set("k", 1)
	c.Set("k", 2)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Count())
}
