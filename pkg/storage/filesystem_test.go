package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(ctx, "reports/roster.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "reports/roster.csv", name)

	rc, err := store.Open(ctx, name)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a,b\n", string(body))

	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))
	_, err = store.Open(ctx, name)
	assert.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../escape.csv", []byte("x"), "")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Open(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save(ctx, "old.pdf", []byte("old"), "")
	require.NoError(t, err)
	_, err = store.Save(ctx, "new.pdf", []byte("new"), "")
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.pdf"), past, past))

	deleted, err := store.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.pdf"}, deleted)
	_, err = os.Stat(filepath.Join(dir, "new.pdf"))
	assert.NoError(t, err)
}
