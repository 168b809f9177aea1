package backend_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/backend"
)

func TestCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := backend.OpenCache(path)
	require.NoError(t, err)
	defer cache.Close()

	_, ok, err := cache.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put("k", []byte("v1")))
	require.NoError(t, cache.Put("k", []byte("v2")))
	require.NoError(t, cache.Put("empty", nil))

	out, ok, err := cache.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(out))

	out, ok, err = cache.Get("empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestCache_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := backend.OpenCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put("argv", []byte("/nix/store/x")))
	require.NoError(t, cache.Close())

	reopened, err := backend.OpenCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	out, ok, err := reopened.Get("argv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/nix/store/x", string(out))
}
