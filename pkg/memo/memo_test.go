package memo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Parallel()

	t.Run("get and set", func(t *testing.T) {
		c := New[string, int](time.Minute, 10)
		c.Set("a", 1)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("expired entries are dropped", func(t *testing.T) {
		c := New[string, int](time.Minute, 10)
		c.Set("a", 1)

		now := time.Now()
		c.now = func() time.Time { return now.Add(2 * time.Minute) }

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("capacity evicts least recently used", func(t *testing.T) {
		c := New[string, int](time.Hour, 2)
		now := time.Now()
		c.now = func() time.Time { return now }

		c.Set("a", 1)
		now = now.Add(time.Second)
		c.Set("b", 2)

		// touch "a" so "b" becomes the oldest
		now = now.Add(time.Second)
		_, ok := c.Get("a")
		require.True(t, ok)

		now = now.Add(time.Second)
		c.Set("c", 3)

		assert.True(t, c.Has("a"))
		assert.False(t, c.Has("b"))
		assert.True(t, c.Has("c"))
	})

	t.Run("delete and flush", func(t *testing.T) {
		c := New[string, int](time.Minute, 10)
		c.Set("a", 1)
		c.Set("b", 2)

		c.Delete("a")
		assert.False(t, c.Has("a"))

		c.Flush()
		assert.Equal(t, 0, c.Len())
	})
}
