package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user.name", "Ada"))
	require.NoError(t, store.Set(ctx, "preference.units", "metric"))

	value, ok, err := store.Get(ctx, "user.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", value)

	_, ok, err = store.Get(ctx, "user.missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "project.current", map[string]any{"path": "/src/nova"}))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	value, ok, err := reopened.Get(ctx, "project.current")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, value, "path")
}

func TestFileStoreRejectsUnknownNamespace(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	err = store.Set(context.Background(), "secrets.apiKey", "nope")
	assert.Error(t, err)

	err = store.Set(context.Background(), "noseparator", "nope")
	assert.Error(t, err)
}

func TestFileStoreKeysByPrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "person.alice", "friend"))
	require.NoError(t, store.Set(ctx, "person.bob", "colleague"))
	require.NoError(t, store.Set(ctx, "tool.editor", "vim"))

	keys, err := store.Keys(ctx, "person.")
	require.NoError(t, err)
	assert.Equal(t, []string{"person.alice", "person.bob"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tool.shell", "zsh"))
	require.NoError(t, store.Delete(ctx, "tool.shell"))
	_, ok, err := store.Get(ctx, "tool.shell")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete(ctx, "tool.shell"))
}
