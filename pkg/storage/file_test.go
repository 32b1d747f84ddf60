package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "nested", "storage.json"))
	require.NoError(t, err)
	exerciseStorage(t, f)
}

func TestFileStorageSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")
	first, err := NewFile(path)
	require.NoError(t, err)
	second, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, Namespaced(first, "local").Set(ctx, KeyCart, `[]`))
	got, err := Namespaced(second, "local").Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"local:cart"`)
}

func TestFileStorageCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	f, err := NewFile(path)
	require.NoError(t, err)

	_, err = f.Get(context.Background(), KeyCart)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestNewFileRequiresPath(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}
