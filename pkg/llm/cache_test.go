package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	key := CacheKey("some prompt", "llama3.2", Params{Temperature: 0.3, MaxTokens: 512})

	_, ok := cache.Get(key)
	assert.False(t, ok)

	require.NoError(t, cache.Put(key, "generated policy"))
	text, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, "generated policy", text)

	// Overwrites are idempotent for a content-addressed key.
	require.NoError(t, cache.Put(key, "generated policy"))
	text, ok = cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, "generated policy", text)
}

func TestCacheKeySensitivity(t *testing.T) {
	base := CacheKey("prompt", "model-a", Params{Temperature: 0.3, MaxTokens: 512})

	assert.NotEqual(t, base, CacheKey("prompt!", "model-a", Params{Temperature: 0.3, MaxTokens: 512}))
	assert.NotEqual(t, base, CacheKey("prompt", "model-b", Params{Temperature: 0.3, MaxTokens: 512}))
	assert.NotEqual(t, base, CacheKey("prompt", "model-a", Params{Temperature: 0.7, MaxTokens: 512}))
	assert.NotEqual(t, base, CacheKey("prompt", "model-a", Params{Temperature: 0.3, MaxTokens: 256}))

	assert.Equal(t, base, CacheKey("prompt", "model-a", Params{Temperature: 0.3, MaxTokens: 512}))
	assert.Len(t, base, 64)
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewCache(dir)
	require.NoError(t, err)
	key := CacheKey("prompt", "model", Params{})
	require.NoError(t, first.Put(key, "stored"))

	second, err := NewCache(dir)
	require.NoError(t, err)
	text, ok := second.Get(key)
	require.True(t, ok)
	assert.Equal(t, "stored", text)
}
