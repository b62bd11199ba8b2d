package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/engine/pipeline"
)

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Hour, 10)
	cache.Set("k", pipeline.Result{Success: true, StepsCompleted: 2})

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.StepsCompleted)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Minute, 10)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("k", pipeline.Result{Success: true})
	current = current.Add(2 * time.Minute)

	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := NewCache(time.Hour, 2)
	cache.Set("a", pipeline.Result{})
	cache.Set("b", pipeline.Result{})

	_, ok := cache.Get("a") // refresh a
	require.True(t, ok)

	cache.Set("c", pipeline.Result{})

	_, ok = cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestKeyIsStableAcrossMapOrder(t *testing.T) {
	t.Parallel()

	a, err := Key("execute_pipeline", map[string]any{"x": 1, "y": []any{"a", "b"}})
	require.NoError(t, err)
	b, err := Key("execute_pipeline", map[string]any{"y": []any{"a", "b"}, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Key("execute_pipeline", map[string]any{"x": 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKeyHandlesStructs(t *testing.T) {
	t.Parallel()

	req := pipeline.Request{Steps: []pipeline.Step{{ID: "a", ToolName: "t"}}}
	a, err := Key("execute_pipeline", req)
	require.NoError(t, err)
	b, err := Key("execute_pipeline", req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
