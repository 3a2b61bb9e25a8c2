package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_SetGetDelete verifies the basic key lifecycle.
func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "InstallDate")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "InstallDate", "1700000000000", 0))
	value, ok, err := store.Get(ctx, "InstallDate")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1700000000000", value)

	require.NoError(t, store.Delete(ctx, "InstallDate", "never-set"))
	_, ok, err = store.Get(ctx, "InstallDate")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_TTLExpires verifies keys disappear after their TTL.
func TestStore_TTLExpires(t *testing.T) {
	ctx := context.Background()
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "thanks-c1-bob", "1", time.Second))
	_, ok, err := store.Get(ctx, "thanks-c1-bob")
	require.NoError(t, err)
	assert.True(t, ok)

	// Badger TTLs have one second resolution.
	time.Sleep(2100 * time.Millisecond)
	_, ok, err = store.Get(ctx, "thanks-c1-bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_Persistent verifies data survives reopening the directory.
func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "prevTimeBetweenChecks", "28", 0))
	require.NoError(t, store.Close())

	store, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Get(ctx, "prevTimeBetweenChecks")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "28", value)
}

// TestOpen_RequiresPath rejects a persistent store without a directory.
func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
